package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/yuqie6/Folio/internal/dto"
	"github.com/yuqie6/Folio/internal/export"
	"github.com/yuqie6/Folio/internal/observability"
	"github.com/yuqie6/Folio/internal/schema"
	"github.com/yuqie6/Folio/internal/service"
	"github.com/yuqie6/Folio/internal/store"
	"github.com/yuqie6/Folio/internal/viewstate"
)

// 视图首次加载的最长等待
const viewWaitTimeout = 15 * time.Second

func (a *apiServer) registerJSONRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/status", a.getStatus)

	mux.HandleFunc("GET /api/session", a.getSession)
	mux.HandleFunc("POST /api/session", a.limited(a.signIn))
	mux.HandleFunc("DELETE /api/session", a.limited(a.signOut))

	mux.HandleFunc("GET /api/dashboard", a.getView(viewstate.KindDashboard))
	mux.HandleFunc("GET /api/resume", a.getView(viewstate.KindResume))
	mux.HandleFunc("GET /api/profile", a.getView(viewstate.KindProfile))
	mux.HandleFunc("GET /api/resume/markdown", a.getResumeMarkdown)

	mux.HandleFunc("POST /api/achievements", a.limited(a.createAchievement))
	mux.HandleFunc("PATCH /api/achievements/{id}", a.limited(a.updateAchievement))
	mux.HandleFunc("DELETE /api/achievements/{id}", a.limited(a.deleteAchievement))
	mux.HandleFunc("POST /api/achievements/{id}/visibility", a.limited(a.setVisibility))

	mux.HandleFunc("PUT /api/profile", a.limited(a.saveProfile))
	mux.HandleFunc("POST /api/profile/summary", a.limited(a.generateSummary))

	mux.HandleFunc("POST /api/integrations/connect", a.limited(a.connect))
	mux.HandleFunc("POST /api/reload", a.limited(a.reload))
}

// limited 写接口限流
func (a *apiServer) limited(fn http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if a.limiter != nil && !a.limiter.Allow() {
			writeError(w, http.StatusTooManyRequests, "请求过于频繁")
			return
		}
		fn(w, r)
	}
}

// currentUser 未登录时写 401
func (a *apiServer) currentUser(w http.ResponseWriter) (string, bool) {
	owner := a.rt.Session.CurrentUser()
	if owner == "" {
		writeError(w, http.StatusUnauthorized, "未登录")
		return "", false
	}
	return owner, true
}

// writeServiceError 按错误类型映射状态码
func writeServiceError(w http.ResponseWriter, err error) {
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": verr.Error(), "field": verr.Field})
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "记录不存在")
	case errors.Is(err, viewstate.ErrNoUser):
		writeError(w, http.StatusUnauthorized, "未登录")
	case errors.Is(err, store.ErrUnavailable), errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// ========== handlers ==========

func (a *apiServer) getStatus(w http.ResponseWriter, r *http.Request) {
	backend, dbPath, schemaVersion := a.rt.BackendInfo()
	st, err := observability.BuildStatus(observability.StatusSource{
		AppName:       a.rt.Cfg.App.Name,
		ConfigPath:    a.rt.CfgPath,
		Backend:       backend,
		DBPath:        dbPath,
		SchemaVersion: schemaVersion,
		Session:       a.rt.Session,
		Subs:          a.rt.Subs,
		Hub:           a.rt.Hub,
		TailerCursor:  a.rt.TailerCursor(),
	}, a.startTime)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (a *apiServer) sessionDTO() *dto.SessionDTO {
	out := &dto.SessionDTO{User: a.rt.Session.CurrentUser(), Mounted: []string{}}
	for _, k := range a.rt.Session.Mounted() {
		out.Mounted = append(out.Mounted, string(k))
	}
	return out
}

func (a *apiServer) getSession(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.sessionDTO())
}

func (a *apiServer) signIn(w http.ResponseWriter, r *http.Request) {
	var req dto.SignInRequestDTO
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "请求体无效")
		return
	}
	if strings.TrimSpace(req.User) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "user 不能为空", "field": "user"})
		return
	}
	if err := a.rt.SignIn(r.Context(), req.User, req.Email); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a.sessionDTO())
}

func (a *apiServer) signOut(w http.ResponseWriter, r *http.Request) {
	a.rt.Session.SignOut()
	writeJSON(w, http.StatusOK, a.sessionDTO())
}

// getView 按需挂载视图，等首次加载结束后返回快照
func (a *apiServer) getView(kind viewstate.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := a.currentUser(w); !ok {
			return
		}
		data, version, ok := a.snapshot(w, r, kind)
		if !ok {
			return
		}
		writeJSON(w, http.StatusOK, &dto.ViewEnvelopeDTO{
			View:     string(kind),
			Version:  version,
			Degraded: a.rt.Session.Degraded(kind),
			Data:     data,
		})
	}
}

func (a *apiServer) snapshot(w http.ResponseWriter, r *http.Request, kind viewstate.Kind) (any, uint64, bool) {
	if err := a.rt.Session.Mount(kind); err != nil {
		writeServiceError(w, err)
		return nil, 0, false
	}
	ctx, cancel := context.WithTimeout(r.Context(), viewWaitTimeout)
	defer cancel()
	waitErr := a.rt.Session.Wait(ctx, kind)

	var (
		data    any
		version uint64
		ok      bool
	)
	switch kind {
	case viewstate.KindDashboard:
		p, loaded := a.rt.Session.Dashboard()
		data, version, ok = p.Value, p.Version, loaded
	case viewstate.KindResume:
		p, loaded := a.rt.Session.Resume()
		data, version, ok = p.Value, p.Version, loaded
	case viewstate.KindProfile:
		p, loaded := a.rt.Session.Profile()
		data, version, ok = p.Value, p.Version, loaded
	}
	if !ok {
		// 从未加载成功：没有可展示的旧快照
		if waitErr == nil {
			waitErr = store.ErrUnavailable
		}
		writeServiceError(w, waitErr)
		return nil, 0, false
	}
	return data, version, true
}

func (a *apiServer) getResumeMarkdown(w http.ResponseWriter, r *http.Request) {
	if _, ok := a.currentUser(w); !ok {
		return
	}
	data, _, ok := a.snapshot(w, r, viewstate.KindResume)
	if !ok {
		return
	}
	resume := data.(viewstate.Resume)
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(export.Markdown(resume.Profile, resume.Sections)))
}

func (a *apiServer) createAchievement(w http.ResponseWriter, r *http.Request) {
	owner, ok := a.currentUser(w)
	if !ok {
		return
	}
	var in service.AchievementInput
	if err := readJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "请求体无效")
		return
	}
	item, err := a.rt.Services.Achievements.Create(r.Context(), owner, in)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

func (a *apiServer) updateAchievement(w http.ResponseWriter, r *http.Request) {
	owner, ok := a.currentUser(w)
	if !ok {
		return
	}
	id := r.PathValue("id")
	var in service.AchievementInput
	if err := readJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "请求体无效")
		return
	}
	if err := a.rt.Services.Achievements.Update(r.Context(), owner, id, in); err != nil {
		writeServiceError(w, err)
		return
	}
	item, err := a.rt.Store.GetAchievement(r.Context(), owner, id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (a *apiServer) deleteAchievement(w http.ResponseWriter, r *http.Request) {
	owner, ok := a.currentUser(w)
	if !ok {
		return
	}
	id := r.PathValue("id")
	confirmed, _ := strconv.ParseBool(r.URL.Query().Get("confirm"))
	deleted, err := a.rt.Services.Achievements.Delete(r.Context(), owner, id, func(schema.Achievement) bool {
		return confirmed
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, &dto.DeleteResultDTO{ID: id, Deleted: deleted})
}

func (a *apiServer) setVisibility(w http.ResponseWriter, r *http.Request) {
	owner, ok := a.currentUser(w)
	if !ok {
		return
	}
	id := r.PathValue("id")
	var req dto.VisibilityRequestDTO
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "请求体无效")
		return
	}

	svc := a.rt.Services.Achievements
	var (
		visible bool
		err     error
	)
	if req.Visible != nil {
		visible = *req.Visible
		err = svc.SetVisibility(r.Context(), owner, id, visible)
	} else {
		visible, err = svc.ToggleVisibility(r.Context(), owner, id)
	}
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, &dto.VisibilityResultDTO{ID: id, Visible: visible})
}

func (a *apiServer) saveProfile(w http.ResponseWriter, r *http.Request) {
	owner, ok := a.currentUser(w)
	if !ok {
		return
	}
	var in service.ProfileInput
	if err := readJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "请求体无效")
		return
	}
	if err := a.rt.Services.Profiles.Save(r.Context(), owner, in); err != nil {
		writeServiceError(w, err)
		return
	}
	p, err := a.rt.Services.Profiles.Get(r.Context(), owner)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (a *apiServer) generateSummary(w http.ResponseWriter, r *http.Request) {
	owner, ok := a.currentUser(w)
	if !ok {
		return
	}
	var req dto.SummaryRequestDTO
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "请求体无效")
		return
	}
	svc := a.rt.Services.Profiles
	ctx := r.Context()

	if req.Save {
		text, err := svc.GenerateAndSave(ctx, owner)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, &dto.SummaryResultDTO{Summary: text, Saved: true})
		return
	}

	p, err := svc.Get(ctx, owner)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	draft := service.FromProfile(p)
	if req.FullName != "" {
		draft.FullName = req.FullName
	}
	if req.Headline != "" {
		draft.Headline = req.Headline
	}
	text, err := svc.GenerateSummary(ctx, owner, draft)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, &dto.SummaryResultDTO{Summary: text})
}

func (a *apiServer) connect(w http.ResponseWriter, r *http.Request) {
	owner, ok := a.currentUser(w)
	if !ok {
		return
	}
	var req dto.ConnectRequestDTO
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "请求体无效")
		return
	}
	conn, err := a.rt.Connect(r.Context(), owner, req.Platform, req.Username)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, conn)
}

func (a *apiServer) reload(w http.ResponseWriter, r *http.Request) {
	if _, ok := a.currentUser(w); !ok {
		return
	}
	a.rt.Session.TriggerReload()
	writeJSON(w, http.StatusAccepted, a.sessionDTO())
}
