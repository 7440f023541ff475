package aggregate

import (
	"fmt"
	"time"

	"github.com/yuqie6/Folio/internal/schema"
)

// KnownPlatform 仪表盘固定展示的平台
type KnownPlatform struct {
	Key   string
	Label string
}

var knownPlatforms = []KnownPlatform{
	{Key: "linkedin", Label: "LinkedIn"},
	{Key: "github", Label: "GitHub"},
	{Key: "coursera", Label: "Coursera"},
}

// IsKnownPlatform 是否为支持连接的平台
func IsKnownPlatform(key string) bool {
	for _, p := range knownPlatforms {
		if p.Key == key {
			return true
		}
	}
	return false
}

// IntegrationStatus 单个平台的连接状态
type IntegrationStatus struct {
	Platform   string     `json:"platform"`
	Label      string     `json:"label"`
	Connected  bool       `json:"connected"`
	LastSyncAt *time.Time `json:"last_sync_at"`
	LastSync   string     `json:"last_sync"`
}

// IntegrationStatuses 按固定平台顺序输出状态；存在连接记录即视为已连接
func IntegrationStatuses(conns []schema.IntegrationConnection, now time.Time) []IntegrationStatus {
	out := make([]IntegrationStatus, 0, len(knownPlatforms))
	for _, p := range knownPlatforms {
		st := IntegrationStatus{Platform: p.Key, Label: p.Label, LastSync: FormatLastSync(nil, now)}
		for i := range conns {
			if conns[i].Platform != p.Key {
				continue
			}
			st.Connected = true
			if conns[i].LastSyncAt != nil {
				t := *conns[i].LastSyncAt
				st.LastSyncAt = &t
			}
			st.LastSync = FormatLastSync(st.LastSyncAt, now)
			break
		}
		out = append(out, st)
	}
	return out
}

// FormatLastSync "Never" / "Just now" / "5m ago" / "3h ago" / "2d ago"
func FormatLastSync(t *time.Time, now time.Time) string {
	if t == nil || t.IsZero() {
		return "Never"
	}
	mins := int(now.Sub(*t) / time.Minute)
	switch {
	case mins < 1:
		return "Just now"
	case mins < 60:
		return fmt.Sprintf("%dm ago", mins)
	case mins < 1440:
		return fmt.Sprintf("%dh ago", mins/60)
	default:
		return fmt.Sprintf("%dd ago", mins/1440)
	}
}
