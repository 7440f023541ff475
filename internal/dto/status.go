package dto

type StatusDTO struct {
	App     AppStatusDTO     `json:"app"`
	Storage StorageStatusDTO `json:"storage"`
	Session SessionStatusDTO `json:"session"`
	Sync    SyncStatusDTO    `json:"sync"`
}

type AppStatusDTO struct {
	Name       string `json:"name"`
	Version    string `json:"version"`
	Commit     string `json:"commit,omitempty"`
	StartedAt  string `json:"started_at"`
	UptimeSec  int64  `json:"uptime_sec"`
	ConfigPath string `json:"config_path,omitempty"`
}

type StorageStatusDTO struct {
	Backend       string `json:"backend"` // sqlite | supabase
	DBPath        string `json:"db_path,omitempty"`
	SchemaVersion int    `json:"schema_version,omitempty"`
}

type SessionStatusDTO struct {
	User  string          `json:"user"`
	Views []ViewStatusDTO `json:"views"`
}

type ViewStatusDTO struct {
	View      string `json:"view"`
	State     string `json:"state"`
	Degraded  bool   `json:"degraded"`
	LastError string `json:"last_error,omitempty"`
}

type SyncStatusDTO struct {
	Subscriptions  int   `json:"subscriptions"`
	HubSubscribers int   `json:"hub_subscribers"`
	TailerEnabled  bool  `json:"tailer_enabled"`
	TailerLastSeq  int64 `json:"tailer_last_seq,omitempty"`
}
