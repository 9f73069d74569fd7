package coordcache

import "github.com/coordcache/coordcache/logging"

// Fields is a minimal structured field map for logs.
type Fields = logging.Fields

// Logger is a tiny leveled logger. Provide an adapter around your logging
// stack (see log/zap, log/logrus, log/slog). If Logger is nil in
// ContextOptions, logging is disabled.
type Logger = logging.Logger

type NopLogger = logging.Nop
