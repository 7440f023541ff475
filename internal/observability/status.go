package observability

import (
	"errors"
	"time"

	"github.com/yuqie6/Folio/internal/dto"
	"github.com/yuqie6/Folio/internal/eventbus"
	"github.com/yuqie6/Folio/internal/pkg/buildinfo"
	"github.com/yuqie6/Folio/internal/subscription"
	"github.com/yuqie6/Folio/internal/viewstate"
)

var ErrNotReady = errors.New("runtime not ready")

// StatusSource 组装状态所需的运行时部件
type StatusSource struct {
	AppName       string
	ConfigPath    string
	Backend       string
	DBPath        string
	SchemaVersion int

	Session *viewstate.Session
	Subs    *subscription.Manager
	Hub     *eventbus.Hub
	// TailerCursor 为 nil 表示未启用跨进程追读
	TailerCursor func() int64
}

func BuildStatus(src StatusSource, startedAt time.Time) (*dto.StatusDTO, error) {
	if src.Session == nil {
		return nil, ErrNotReady
	}
	now := time.Now()

	views := []dto.ViewStatusDTO{}
	for _, v := range src.Session.Status() {
		views = append(views, dto.ViewStatusDTO{
			View:      string(v.View),
			State:     v.State,
			Degraded:  v.Degraded,
			LastError: v.LastError,
		})
	}

	st := &dto.StatusDTO{
		App: dto.AppStatusDTO{
			Name:       src.AppName,
			Version:    buildinfo.Version,
			Commit:     buildinfo.Commit,
			StartedAt:  startedAt.Format(time.RFC3339),
			UptimeSec:  int64(now.Sub(startedAt).Seconds()),
			ConfigPath: src.ConfigPath,
		},
		Storage: dto.StorageStatusDTO{
			Backend:       src.Backend,
			DBPath:        src.DBPath,
			SchemaVersion: src.SchemaVersion,
		},
		Session: dto.SessionStatusDTO{
			User:  src.Session.CurrentUser(),
			Views: views,
		},
		Sync: dto.SyncStatusDTO{
			HubSubscribers: src.Hub.Len(),
		},
	}
	if src.Subs != nil {
		st.Sync.Subscriptions = src.Subs.Active()
	}
	if src.TailerCursor != nil {
		st.Sync.TailerEnabled = true
		st.Sync.TailerLastSeq = src.TailerCursor()
	}
	return st, nil
}
