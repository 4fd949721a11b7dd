package prompt

// Rule is one drafting rule the reviewer checks claims against.
type Rule struct {
	Name string
	Text string
}

// Rules are checked in this order and rendered into the review prompt.
var Rules = []Rule{
	{
		Name: "Structure",
		Text: `A patent claim is traditionally written as a single sentence in present tense. Each claim begins with a capital letter and ends with a period. Periods may not be used elsewhere in the claims (other than abbreviations). Semicolons are usually used to separate clauses and phrases. A claim is typically broken into three parts: a preamble, a transitional phrase, and a body.
- The preamble is an introductory phrase that identifies the category of the invention, for example "An apparatus".
- The transitional phrase follows the preamble. Open-ended phrases such as "comprising", "containing" and "characterized by" do not exclude additional elements. Closed phrases such as "consisting of" limit the claim and are rarely appropriate because an infringer can avoid the claim by adding an element.
The body recites the elements and limitations of the claim, which define its scope.`,
	},
	{
		Name: "Punctuation",
		Text: `Claims are extensively punctuated. A comma typically separates the preamble from the transitional phrase and a colon separates the transition from the body. The body is broken into small paragraphs that define the logical elements of the claim. Elements are separated by semicolons and the penultimate element is followed by "; and" before the last ends with a full stop. For example:
An apparatus, comprising:
- a plurality of printed pages;
- a binding configured to hold the printed pages together; and
- a cover attached to the binding.`,
	},
	{
		Name: "Antecedent Basis",
		Text: `Elements must have correct antecedent basis. An element is introduced with the indefinite article "a" or "an" on first use; later references use the definite article "the". For example:
A device, comprising:
- a pencil; and
- a light attached to the pencil.
2. The device recited in claim 1 wherein the light is detachably attached to the pencil.
3. The device recited in claim 2 wherein the pencil is red in color.`,
	},
	{
		Name: "Ambiguity and Indefinite Issues",
		Text: `Claims must distinctly define the subject matter using neither vague nor indefinite terms. Subjective terms such as "long", "effective", "bright" and "near" leave the scope unclear. For example this claim is invalid:
An apparatus, comprising:
a long pencil having two ends;
an effective eraser attached to one end of the pencil; and
a bright light attached near a center of the pencil`,
	},
	{
		Name: "Broadening Dependent Claims",
		Text: `A dependent claim must always be narrower than the claim it depends from. A dependent claim that contradicts or fails to further narrow its parent is improper. For example, claim 2 below contradicts claim 1:
A device, comprising a pencil; and a light attached to the pencil, wherein the light is detachably attached to the pencil.
2. The device of claim 1, wherein the light is permanently attached to the pencil.`,
	},
}
