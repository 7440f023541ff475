package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/yuqie6/Folio/internal/schema"
	"github.com/yuqie6/Folio/internal/store"
)

// Realtime Supabase Realtime 变更源（Phoenix 协议）。
// 每次 Watch 建立一条独立连接和一个 channel，过滤条件在服务端按 owner 生效。
type Realtime struct {
	url         string
	apiKey      string
	accessToken string
	dialer      *websocket.Dialer

	Heartbeat   time.Duration
	JoinTimeout time.Duration
}

var _ store.ChangeFeed = (*Realtime)(nil)

// NewRealtime 由 REST 地址推导 websocket 地址
func NewRealtime(cfg Config) (*Realtime, error) {
	if cfg.URL == "" || cfg.APIKey == "" {
		return nil, fmt.Errorf("supabase url 与 api_key 不能为空")
	}
	wsURL := strings.TrimSuffix(cfg.URL, "/")
	switch {
	case strings.HasPrefix(wsURL, "https"):
		wsURL = "wss" + wsURL[len("https"):]
	case strings.HasPrefix(wsURL, "http"):
		wsURL = "ws" + wsURL[len("http"):]
	}
	wsURL += "/realtime/v1/websocket?apikey=" + cfg.APIKey + "&vsn=1.0.0"

	return &Realtime{
		url:         wsURL,
		apiKey:      cfg.APIKey,
		accessToken: cfg.AccessToken,
		dialer:      &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		Heartbeat:   30 * time.Second,
		JoinTimeout: 10 * time.Second,
	}, nil
}

// phxMessage Phoenix 帧
type phxMessage struct {
	Topic   string          `json:"topic"`
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
	Ref     *string         `json:"ref"`
	JoinRef *string         `json:"join_ref,omitempty"`
}

type postgresChange struct {
	Event  string `json:"event"`
	Schema string `json:"schema"`
	Table  string `json:"table"`
	Filter string `json:"filter"`
}

type joinReply struct {
	Status   string `json:"status"`
	Response struct {
		Reason string `json:"reason"`
	} `json:"response"`
}

// Watch 实现 store.ChangeFeed。加入失败直接返回错误，由订阅管理器退化为单次加载。
func (r *Realtime) Watch(ctx context.Context, owner string, entities []schema.Entity) (<-chan struct{}, error) {
	if owner == "" {
		return nil, fmt.Errorf("owner 不能为空")
	}
	if len(entities) == 0 {
		entities = []schema.Entity{schema.EntityAchievements, schema.EntityProfiles, schema.EntityIntegrations}
	}

	conn, _, err := r.dialer.DialContext(ctx, r.url, nil)
	if err != nil {
		return nil, fmt.Errorf("连接 realtime 失败: %w", err)
	}

	s := &rtSession{
		conn:  conn,
		topic: "realtime:folio-" + uuid.NewString(),
		out:   make(chan struct{}, 1),
	}
	if err := s.join(owner, entities, r.accessToken, r.joinTimeout()); err != nil {
		_ = conn.Close()
		return nil, err
	}
	slog.Debug("realtime 订阅已加入", "owner", owner, "topic", s.topic)

	go s.run(ctx, r.heartbeat())
	return s.out, nil
}

func (r *Realtime) heartbeat() time.Duration {
	if r.Heartbeat <= 0 {
		return 30 * time.Second
	}
	return r.Heartbeat
}

func (r *Realtime) joinTimeout() time.Duration {
	if r.JoinTimeout <= 0 {
		return 10 * time.Second
	}
	return r.JoinTimeout
}

type rtSession struct {
	conn  *websocket.Conn
	topic string
	out   chan struct{}

	writeMu sync.Mutex
	ref     int
	joinRef string
}

func (s *rtSession) send(topic, event string, payload any, withJoinRef bool) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.ref++
	ref := strconv.Itoa(s.ref)
	msg := map[string]any{
		"topic":   topic,
		"event":   event,
		"payload": payload,
		"ref":     ref,
	}
	if withJoinRef {
		if s.joinRef == "" {
			s.joinRef = ref
		}
		msg["join_ref"] = s.joinRef
	}
	return s.conn.WriteJSON(msg)
}

func (s *rtSession) join(owner string, entities []schema.Entity, token string, timeout time.Duration) error {
	changes := make([]postgresChange, 0, len(entities))
	for _, e := range entities {
		changes = append(changes, postgresChange{
			Event:  "*",
			Schema: "public",
			Table:  string(e),
			Filter: ownerColumn(e) + "=eq." + owner,
		})
	}
	payload := map[string]any{
		"config": map[string]any{
			"postgres_changes": changes,
		},
	}
	if token != "" {
		payload["access_token"] = token
	}
	if err := s.send(s.topic, "phx_join", payload, true); err != nil {
		return fmt.Errorf("发送 join 失败: %w", err)
	}

	// 等待 join 回执
	_ = s.conn.SetReadDeadline(time.Now().Add(timeout))
	defer func() { _ = s.conn.SetReadDeadline(time.Time{}) }()
	for {
		var msg phxMessage
		if err := s.conn.ReadJSON(&msg); err != nil {
			return fmt.Errorf("等待 join 回执失败: %w", err)
		}
		if msg.Topic != s.topic || msg.Event != "phx_reply" {
			continue
		}
		var reply joinReply
		if err := json.Unmarshal(msg.Payload, &reply); err != nil {
			return fmt.Errorf("解析 join 回执失败: %w", err)
		}
		if reply.Status != "ok" {
			return fmt.Errorf("realtime join 被拒绝: %s", reply.Response.Reason)
		}
		return nil
	}
}

func (s *rtSession) run(ctx context.Context, heartbeat time.Duration) {
	defer close(s.out)

	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		s.readLoop()
	}()

	ticker := time.NewTicker(heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = s.send(s.topic, "phx_leave", map[string]any{}, true)
			s.writeMu.Lock()
			_ = s.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			s.writeMu.Unlock()
			_ = s.conn.Close()
			<-readDone
			return
		case <-readDone:
			slog.Warn("realtime 连接断开，视图不再实时更新", "topic", s.topic)
			_ = s.conn.Close()
			return
		case <-ticker.C:
			if err := s.send("phoenix", "heartbeat", map[string]any{}, false); err != nil {
				slog.Warn("realtime 心跳失败", "error", err)
			}
		}
	}
}

func (s *rtSession) readLoop() {
	for {
		var msg phxMessage
		if err := s.conn.ReadJSON(&msg); err != nil {
			return
		}
		if msg.Topic != s.topic {
			continue
		}
		switch msg.Event {
		case "postgres_changes":
			select {
			case s.out <- struct{}{}:
			default:
				// 已有未消费的信号，合并
			}
		case "phx_close", "phx_error":
			return
		}
	}
}
