package redisstore

// luaAppendEvent atomically increments the per-session sequence, embeds it into
// the event JSON, appends to the session events ZSET (score=seq), and updates the
// session record's last_event_seq field if present.
//
// KEYS[1] = seq key
// KEYS[2] = events zset key
// KEYS[3] = session state key (JSON string)
// ARGV[1] = event JSON string
// ARGV[2] = ttl in milliseconds, 0 for none
//
// Returns: sequence (number)
const luaAppendEvent = `
local seq = redis.call('INCR', KEYS[1])

local ev = cjson.decode(ARGV[1])
ev['sequence_num'] = seq
redis.call('ZADD', KEYS[2], seq, cjson.encode(ev))

local stjson = redis.call('GET', KEYS[3])
if stjson then
  local st = cjson.decode(stjson)
  st['last_event_seq'] = seq
  redis.call('SET', KEYS[3], cjson.encode(st), 'KEEPTTL')
end

local ttl = tonumber(ARGV[2])
if ttl and ttl > 0 then
  redis.call('PEXPIRE', KEYS[1], ttl)
  redis.call('PEXPIRE', KEYS[2], ttl)
end

return seq
`
