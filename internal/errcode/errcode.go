package errcode

// 错误码约定：
// - 0：无错误
// - 4xxx：业务可恢复/告警类错误（例如配额用尽、AI 输出不合法）
// - 5xxx：系统错误（需要中断流程）
const (
	OK                  = 0
	QuotaExceeded       = 4029
	MalformedAIResponse = 4022
	DocumentMissing     = 4004
	DocumentChanged     = 4009
	SystemError         = 5000
	ProviderError       = 5002
)
