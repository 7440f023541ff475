package dto

// 注意：本包用于承载“对外契约”的 DTO（与 HTTP API / CLI 保持稳定）。
// 不要在这里放 GORM/持久化细节；内部持久化 schema 请见 internal/schema；业务逻辑收敛在 internal/service。

type SessionDTO struct {
	User    string   `json:"user"`
	Mounted []string `json:"mounted"`
}

type SignInRequestDTO struct {
	User  string `json:"user"`
	Email string `json:"email,omitempty"`
}

type VisibilityRequestDTO struct {
	// 为空时按存储中的当前值取反
	Visible *bool `json:"visible,omitempty"`
}

type VisibilityResultDTO struct {
	ID      string `json:"id"`
	Visible bool   `json:"visible"`
}

type DeleteResultDTO struct {
	ID      string `json:"id"`
	Deleted bool   `json:"deleted"`
}

type SummaryRequestDTO struct {
	Save bool `json:"save"`
	// 未保存的表单草稿；为空时使用已保存的姓名/标题
	FullName string `json:"full_name,omitempty"`
	Headline string `json:"headline,omitempty"`
}

type SummaryResultDTO struct {
	Summary string `json:"summary"`
	Saved   bool   `json:"saved"`
}

type ViewEnvelopeDTO struct {
	View     string `json:"view"`
	Version  uint64 `json:"version"`
	Degraded bool   `json:"degraded"`
	Data     any    `json:"data"`
}

type ConnectRequestDTO struct {
	Platform string `json:"platform"`
	Username string `json:"username,omitempty"`
}
