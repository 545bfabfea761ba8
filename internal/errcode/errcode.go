package errcode

// 错误码约定：
// - 0：无错误
// - 4xxx：业务可恢复/告警类错误（例如校验失败、重复提交、资源缺失）
// - 5xxx：系统错误（需要中断流程）
const (
	OK              = 0
	Validation      = 4000
	Unauthorized    = 4001
	ResourceMissing = 4004
	Conflict        = 4009
	SystemError     = 5000
)

// 校验失败的原因分类，随 400 响应一起返回给调用方。
const (
	ReasonMissingFields   = "missing-fields"
	ReasonMissingDocument = "missing-document"
	ReasonBadFile         = "bad-file"
	ReasonMalformed       = "malformed"
	ReasonUnknownKey      = "unknown-key"
	ReasonWeakPassword    = "weak-password"
)
