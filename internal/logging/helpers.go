package logging

// Printf-style helpers per category. These keep call sites terse:
// logging.Session("resumed %s", id) instead of threading loggers through
// every constructor.

func Boot(format string, args ...interface{}) {
	Get(CategoryBoot).Infof(format, args...)
}

func Session(format string, args ...interface{}) {
	Get(CategorySession).Infof(format, args...)
}
func SessionDebug(format string, args ...interface{}) {
	Get(CategorySession).Debugf(format, args...)
}
func SessionWarn(format string, args ...interface{}) {
	Get(CategorySession).Warnf(format, args...)
}
func SessionError(format string, args ...interface{}) {
	Get(CategorySession).Errorf(format, args...)
}

func Ledger(format string, args ...interface{}) {
	Get(CategoryLedger).Infof(format, args...)
}
func LedgerDebug(format string, args ...interface{}) {
	Get(CategoryLedger).Debugf(format, args...)
}

func Context(format string, args ...interface{}) {
	Get(CategoryContext).Infof(format, args...)
}
func ContextDebug(format string, args ...interface{}) {
	Get(CategoryContext).Debugf(format, args...)
}
func ContextWarn(format string, args ...interface{}) {
	Get(CategoryContext).Warnf(format, args...)
}

func SyncInfo(format string, args ...interface{}) {
	Get(CategorySync).Infof(format, args...)
}
func SyncDebug(format string, args ...interface{}) {
	Get(CategorySync).Debugf(format, args...)
}
func SyncWarn(format string, args ...interface{}) {
	Get(CategorySync).Warnf(format, args...)
}
func SyncError(format string, args ...interface{}) {
	Get(CategorySync).Errorf(format, args...)
}

func Continuity(format string, args ...interface{}) {
	Get(CategoryContinuity).Infof(format, args...)
}

func API(format string, args ...interface{}) {
	Get(CategoryAPI).Infof(format, args...)
}
func APIDebug(format string, args ...interface{}) {
	Get(CategoryAPI).Debugf(format, args...)
}
func APIWarn(format string, args ...interface{}) {
	Get(CategoryAPI).Warnf(format, args...)
}

func Config(format string, args ...interface{}) {
	Get(CategoryConfig).Infof(format, args...)
}
func ConfigWarn(format string, args ...interface{}) {
	Get(CategoryConfig).Warnf(format, args...)
}
