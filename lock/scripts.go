package lock

import goredis "github.com/redis/go-redis/v9"

// Lua scripts keep every multi-step decision atomic on the Redis side; the
// client never does a read-modify-write race on lock state.
var (
	// KEYS[1]=lock, KEYS[2]=queue, KEYS[3]=waiter deadlines
	// ARGV[1]=token, ARGV[2]=lease ms, ARGV[3]=now ms
	// Prunes expired waiters from the head, then grants the lock only when
	// the calling token is at the head and the lock key is free.
	fairAcquireScript = goredis.NewScript(`
while true do
	local head = redis.call('lindex', KEYS[2], 0)
	if not head or head == ARGV[1] then
		break
	end
	local dl = redis.call('hget', KEYS[3], head)
	if dl and tonumber(dl) < tonumber(ARGV[3]) then
		redis.call('lpop', KEYS[2])
		redis.call('hdel', KEYS[3], head)
	else
		break
	end
end
if redis.call('lindex', KEYS[2], 0) == ARGV[1] and redis.call('exists', KEYS[1]) == 0 then
	redis.call('lpop', KEYS[2])
	redis.call('hdel', KEYS[3], ARGV[1])
	redis.call('set', KEYS[1], ARGV[1], 'px', ARGV[2])
	return 1
end
return 0`)

	// KEYS[1]=lock, ARGV[1]=token
	compareDelScript = goredis.NewScript(`
if redis.call('get', KEYS[1]) == ARGV[1] then
	redis.call('del', KEYS[1])
	return 1
end
return 0`)

	// KEYS[1]=lock, ARGV[1]=token, ARGV[2]=lease ms
	compareExpireScript = goredis.NewScript(`
if redis.call('get', KEYS[1]) == ARGV[1] then
	redis.call('pexpire', KEYS[1], ARGV[2])
	return 1
end
return 0`)

	// KEYS[1]=rw hash, ARGV[1]=token, ARGV[2]=lease ms
	readAcquireScript = goredis.NewScript(`
local mode = redis.call('hget', KEYS[1], 'mode')
if not mode or mode == 'read' then
	redis.call('hset', KEYS[1], 'mode', 'read')
	redis.call('hincrby', KEYS[1], 'r:' .. ARGV[1], 1)
	redis.call('pexpire', KEYS[1], ARGV[2])
	return 1
end
return 0`)

	// KEYS[1]=rw hash, ARGV[1]=token
	readReleaseScript = goredis.NewScript(`
local n = redis.call('hincrby', KEYS[1], 'r:' .. ARGV[1], -1)
if n <= 0 then
	redis.call('hdel', KEYS[1], 'r:' .. ARGV[1])
end
local readers = 0
for _, f in ipairs(redis.call('hkeys', KEYS[1])) do
	if f ~= 'mode' then
		readers = readers + 1
	end
end
if readers == 0 then
	redis.call('del', KEYS[1])
end
if n < 0 then
	return 0
end
return 1`)

	// KEYS[1]=rw hash, ARGV[1]=token, ARGV[2]=lease ms
	writeAcquireScript = goredis.NewScript(`
if redis.call('hget', KEYS[1], 'mode') then
	return 0
end
redis.call('hset', KEYS[1], 'mode', 'write')
redis.call('hset', KEYS[1], 'holder', ARGV[1])
redis.call('pexpire', KEYS[1], ARGV[2])
return 1`)

	// KEYS[1]=rw hash, ARGV[1]=token
	writeReleaseScript = goredis.NewScript(`
if redis.call('hget', KEYS[1], 'holder') == ARGV[1] then
	redis.call('del', KEYS[1])
	return 1
end
return 0`)

	// KEYS[1]=semaphore
	semAcquireScript = goredis.NewScript(`
local v = tonumber(redis.call('get', KEYS[1]) or '0')
if v > 0 then
	redis.call('decrby', KEYS[1], 1)
	return 1
end
return 0`)

	// KEYS[1]=latch
	latchCountDownScript = goredis.NewScript(`
local v = tonumber(redis.call('get', KEYS[1]) or '0')
if v <= 1 then
	redis.call('del', KEYS[1])
	return 0
end
return redis.call('decrby', KEYS[1], 1)`)
)
