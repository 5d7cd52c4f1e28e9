// Package mattermost implements the Side A session adapter on top of a
// Mattermost server. Each monitored session is a team channel whose display
// name is listed in the session directory.
package mattermost

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"

	"github.com/mattermost/mattermost/server/public/model"
	"go.uber.org/zap"

	"github.com/erp/chatbridge/internal/application/session"
	"github.com/erp/chatbridge/internal/domain/message"
	"github.com/erp/chatbridge/internal/domain/shared"
)

// Config holds the server connection
type Config struct {
	URL      string
	Token    string
	TeamName string // empty selects the first team of the bot user
}

// Adapter talks to Mattermost as the bridge's own user
type Adapter struct {
	client    *model.Client4
	teamName  string
	directory *session.Directory
	logger    *zap.Logger

	mu       sync.RWMutex
	userID   string
	teamID   string
	channels map[string]string // session id -> channel id
	users    map[string]string // user id -> username
}

// New creates an adapter. Connect must succeed before it is used.
func New(cfg Config, directory *session.Directory, logger *zap.Logger) (*Adapter, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, errors.New("mattermost: server url is required")
	}
	if directory == nil {
		return nil, errors.New("mattermost: session directory is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	client := model.NewAPIv4Client(strings.TrimRight(cfg.URL, "/"))
	client.SetToken(cfg.Token)

	return &Adapter{
		client:    client,
		teamName:  cfg.TeamName,
		directory: directory,
		logger:    logger.Named("mattermost"),
		channels:  make(map[string]string),
		users:     make(map[string]string),
	}, nil
}

// Connect verifies the token and selects the team
func (a *Adapter) Connect(ctx context.Context) error {
	me, resp, err := a.client.GetMe(ctx, "")
	if err != nil {
		return classify(resp, fmt.Errorf("verify mattermost token: %w", err))
	}

	var team *model.Team
	if a.teamName != "" {
		team, resp, err = a.client.GetTeamByName(ctx, a.teamName, "")
		if err != nil {
			return classify(resp, fmt.Errorf("get team %q: %w", a.teamName, err))
		}
	} else {
		teams, resp, err := a.client.GetTeamsForUser(ctx, me.Id, "")
		if err != nil {
			return classify(resp, fmt.Errorf("list teams: %w", err))
		}
		if len(teams) == 0 {
			return shared.Fatal(fmt.Errorf("user %s is not a member of any team", me.Username))
		}
		team = teams[0]
	}

	a.mu.Lock()
	a.userID = me.Id
	a.teamID = team.Id
	a.users[me.Id] = me.Username
	a.mu.Unlock()

	a.logger.Info("connected to mattermost",
		zap.String("user_id", me.Id),
		zap.String("username", me.Username),
		zap.String("team", team.Name),
		zap.Int("monitored_sessions", a.directory.Len()),
	)
	return nil
}

func (a *Adapter) identity() (userID, teamID string) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.userID, a.teamID
}

// ListSessionsWithUnread returns the team channels that have messages the
// bridge user has not viewed yet
func (a *Adapter) ListSessionsWithUnread(ctx context.Context) ([]message.SessionHandle, error) {
	userID, teamID := a.identity()
	if userID == "" {
		return nil, shared.Fatal(errors.New("mattermost adapter is not connected"))
	}

	channels, resp, err := a.client.GetChannelsForTeamForUser(ctx, teamID, userID, false, "")
	if err != nil {
		return nil, classify(resp, fmt.Errorf("list channels: %w", err))
	}
	members, resp, err := a.client.GetChannelMembersForUser(ctx, userID, teamID, "")
	if err != nil {
		return nil, classify(resp, fmt.Errorf("list channel memberships: %w", err))
	}

	seen := make(map[string]int64, len(members))
	for _, m := range members {
		seen[m.ChannelId] = m.MsgCount
	}

	handles := make([]message.SessionHandle, 0)
	for _, ch := range channels {
		read, ok := seen[ch.Id]
		if !ok || ch.TotalMsgCount <= read {
			continue
		}
		handles = append(handles, message.SessionHandle{NativeID: ch.Id, DisplayName: ch.DisplayName})
	}
	return handles, nil
}

// ResolveSessionID maps a channel to its configured session id
func (a *Adapter) ResolveSessionID(_ context.Context, handle message.SessionHandle) (string, bool) {
	id, ok := a.directory.Resolve(handle.DisplayName)
	if !ok {
		return "", false
	}
	a.mu.Lock()
	a.channels[id] = handle.NativeID
	a.mu.Unlock()
	return id, true
}

// FetchRecentMessages returns the last window user posts of the channel,
// oldest first, and marks the channel viewed
func (a *Adapter) FetchRecentMessages(ctx context.Context, handle message.SessionHandle, window int) ([]message.RawMessage, error) {
	userID, _ := a.identity()

	list, resp, err := a.client.GetPostsForChannel(ctx, handle.NativeID, 0, window, "", false, false)
	if err != nil {
		err = fmt.Errorf("get posts for channel %s: %w", handle.NativeID, err)
		if stale(resp) {
			a.forgetChannel(handle.NativeID)
			return nil, shared.Transient(err)
		}
		return nil, classify(resp, err)
	}

	posts := list.ToSlice()
	sort.Slice(posts, func(i, j int) bool {
		return posts[i].CreateAt < posts[j].CreateAt
	})

	out := make([]message.RawMessage, 0, len(posts))
	for _, p := range posts {
		if p.Type != "" && p.Type != model.PostTypeDefault {
			continue
		}
		if p.UserId == userID || p.DeleteAt != 0 {
			continue
		}
		body := strings.TrimSpace(p.Message)
		if body == "" {
			continue
		}
		out = append(out, message.RawMessage{
			Sender: a.username(ctx, p.UserId),
			Body:   body,
		})
	}

	if _, _, err := a.client.ViewChannel(ctx, userID, &model.ChannelView{ChannelId: handle.NativeID}); err != nil {
		a.logger.Warn("failed to mark channel viewed",
			zap.String("channel_id", handle.NativeID),
			zap.Error(err),
		)
	}
	return out, nil
}

// username resolves a user id, falling back to the id itself
func (a *Adapter) username(ctx context.Context, userID string) string {
	a.mu.RLock()
	name, ok := a.users[userID]
	a.mu.RUnlock()
	if ok {
		return name
	}

	user, _, err := a.client.GetUser(ctx, userID, "")
	if err != nil {
		a.logger.Debug("failed to resolve user", zap.String("user_id", userID), zap.Error(err))
		return userID
	}

	a.mu.Lock()
	a.users[userID] = user.Username
	a.mu.Unlock()
	return user.Username
}

// SendMessage posts body into the session's channel
func (a *Adapter) SendMessage(ctx context.Context, sessionID, body string) error {
	channelID, err := a.channelFor(ctx, sessionID)
	if err != nil {
		return err
	}

	if _, resp, err := a.client.CreatePost(ctx, &model.Post{ChannelId: channelID, Message: body}); err != nil {
		err = fmt.Errorf("create post in %s: %w", sessionID, err)
		if stale(resp) {
			// the next attempt looks the channel up by name again
			a.forgetChannel(channelID)
			a.logger.Warn("session channel is gone, mapping dropped",
				zap.String("session_id", sessionID),
				zap.String("channel_id", channelID),
				zap.Int("status", resp.StatusCode),
			)
			return shared.Transient(err)
		}
		return classify(resp, err)
	}
	return nil
}

// forgetChannel drops every session mapped to channelID
func (a *Adapter) forgetChannel(channelID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for sessionID, id := range a.channels {
		if id == channelID {
			delete(a.channels, sessionID)
		}
	}
}

// channelFor finds the channel of a session, looking it up by display name
// when the session has not been polled since startup
func (a *Adapter) channelFor(ctx context.Context, sessionID string) (string, error) {
	a.mu.RLock()
	channelID, ok := a.channels[sessionID]
	a.mu.RUnlock()
	if ok {
		return channelID, nil
	}

	name, ok := a.directory.DisplayName(sessionID)
	if !ok {
		return "", shared.Transient(fmt.Errorf("session %q is not configured", sessionID))
	}

	userID, teamID := a.identity()
	channels, resp, err := a.client.GetChannelsForTeamForUser(ctx, teamID, userID, false, "")
	if err != nil {
		return "", classify(resp, fmt.Errorf("list channels: %w", err))
	}
	for _, ch := range channels {
		if a.directory.Clean(ch.DisplayName) == name {
			a.mu.Lock()
			a.channels[sessionID] = ch.Id
			a.mu.Unlock()
			return ch.Id, nil
		}
	}
	return "", shared.Transient(fmt.Errorf("no channel named %q for session %s", name, sessionID))
}

// stale reports whether a channel-scoped call failed because the channel was
// deleted, archived or the bridge user was removed from it
func stale(resp *model.Response) bool {
	return resp != nil && (resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusForbidden)
}

// classify marks authentication failures fatal and everything else transient
func classify(resp *model.Response, err error) error {
	if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
		return shared.Fatal(err)
	}
	return shared.Transient(err)
}

var _ shared.SessionAdapter = (*Adapter)(nil)
