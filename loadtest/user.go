// Copyright 2026 The Stampede Authors
// SPDX-License-Identifier: Apache-2.0

package loadtest

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/zeebo/blake3"

	"github.com/stampede-labs/stampede/messaging"
)

// recentMessageLimit caps the per-room message buffer. A real client
// renders roughly one screenful; keeping more would only inflate the
// prefetch passes.
const recentMessageLimit = 10

// defaultTypingTimeout is how long the server keeps a typing indicator
// alive, matching the fixed initial value mainstream clients send.
const defaultTypingTimeout = 10 * time.Second

// UserConfig holds per-user construction parameters.
type UserConfig struct {
	Username string
	Password string
	// TypingTimeout overrides defaultTypingTimeout when positive.
	TypingTimeout time.Duration
	// Logger receives this user's diagnostics. If nil, slog.Default().
	Logger *slog.Logger
	// Stats receives per-operation counters. May be nil.
	Stats *Stats
	// Rand drives random room selection and workload timing. If nil,
	// a fresh PCG source is created.
	Rand *rand.Rand
}

// User is one simulated client session: a single Matrix account's
// credentials, room membership, media cache, and the local state a
// real client would keep (recent messages, profile lookups). A User
// is driven by exactly one goroutine; the optional background sync
// loop (StartSync) is the only concurrency it owns.
type User struct {
	client *messaging.Client
	store  *CredentialStore
	logger *slog.Logger
	stats  *Stats
	rng    *rand.Rand

	username string
	password string

	// session is nil while unauthenticated. Every authenticated
	// operation goes through authed(), which reports
	// messaging.ErrNoCredential without any network I/O when no
	// token is held.
	session *messaging.Session
	domain  string

	typingTimeout time.Duration

	membership *Membership
	media      *MediaCache

	// Profile lookups are memoized per user-ID. Presence in the map
	// means "known", including known-absent (empty string).
	avatarURLs   map[messaging.UserID]string
	displayNames map[messaging.UserID]string

	// recentMessages holds the last few timeline messages per room,
	// fed by sync. messagesMu covers it, and initialSyncToken below,
	// because the background sync loop writes while the workload
	// goroutine reads. earliestTokens holds back-pagination positions
	// and is touched only by the workload goroutine.
	messagesMu     sync.Mutex
	recentMessages map[messaging.RoomID][]messaging.Event
	earliestTokens map[messaging.RoomID]string

	// syncToken is the current /sync position; initialSyncToken is the
	// first batch token seen this run, the starting point for rooms
	// that have never been back-paginated.
	syncToken        string
	initialSyncToken string

	// uploadedContent deduplicates media uploads by BLAKE3 content
	// hash: the same avatar bytes are uploaded once per run.
	uploadedContent map[[32]byte]string

	syncCancel context.CancelFunc
	syncDone   chan struct{}
}

// NewUser creates a simulated user. If the credential store already
// holds an access token for the username (resumed from a prior run),
// the user starts out authenticated with that token and sync position.
func NewUser(client *messaging.Client, store *CredentialStore, config UserConfig) (*User, error) {
	if client == nil {
		return nil, fmt.Errorf("loadtest: client is required")
	}
	if store == nil {
		return nil, fmt.Errorf("loadtest: credential store is required")
	}
	if config.Username == "" {
		return nil, fmt.Errorf("loadtest: username is required")
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	rng := config.Rand
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	typingTimeout := config.TypingTimeout
	if typingTimeout <= 0 {
		typingTimeout = defaultTypingTimeout
	}

	user := &User{
		client:          client,
		store:           store,
		logger:          logger.With("username", config.Username),
		stats:           config.Stats,
		rng:             rng,
		username:        config.Username,
		password:        config.Password,
		typingTimeout:   typingTimeout,
		membership:      NewMembership(),
		media:           NewMediaCache(),
		avatarURLs:      make(map[messaging.UserID]string),
		displayNames:    make(map[messaging.UserID]string),
		recentMessages:  make(map[messaging.RoomID][]messaging.Event),
		earliestTokens:  make(map[messaging.RoomID]string),
		uploadedContent: make(map[[32]byte]string),
	}

	if credential, ok := store.Get(config.Username); ok && credential.Authenticated() {
		user.session = client.SessionFromToken(credential.UserID, credential.AccessToken)
		user.domain = credential.Domain
		user.syncToken = credential.SyncToken
	}

	return user, nil
}

// Username returns the account-local username (not the full user ID).
func (u *User) Username() string {
	return u.username
}

// Authenticated reports whether the user holds an access token.
func (u *User) Authenticated() bool {
	return u.session != nil
}

// UserID returns the full Matrix user ID, or "" while unauthenticated.
func (u *User) UserID() messaging.UserID {
	if u.session == nil {
		return ""
	}
	return u.session.UserID()
}

// Membership exposes the room membership tracker.
func (u *User) Membership() *Membership {
	return u.membership
}

// MediaCache exposes the per-user media cache.
func (u *User) MediaCache() *MediaCache {
	return u.media
}

// authed is the facade-wide guard: every authenticated operation calls
// it first and short-circuits with messaging.ErrNoCredential, with
// zero network I/O, when no token is held.
func (u *User) authed() (*messaging.Session, error) {
	if u.session == nil {
		return nil, messaging.ErrNoCredential
	}
	return u.session, nil
}

// Register creates the account via the UIAA dummy flow and adopts the
// returned credentials. On success the credential is published to the
// shared store for persistence.
func (u *User) Register(ctx context.Context) error {
	auth, err := u.client.Register(ctx, u.username, u.password, messaging.RegisterOptions{})
	u.stats.Record("register", err)
	if err != nil {
		u.logger.Error("registration failed", "error", err)
		return err
	}
	u.adoptCredentials(auth)
	return nil
}

// Login authenticates with the username and password and adopts the
// returned credentials, overwriting any resumed session. The published
// store entry starts with an empty sync token: a fresh login means a
// fresh timeline position.
func (u *User) Login(ctx context.Context) error {
	auth, err := u.client.Login(ctx, u.username, u.password)
	u.stats.Record("login", err)
	if err != nil {
		u.logger.Error("login failed", "error", err)
		return err
	}
	u.syncToken = ""
	u.adoptCredentials(auth)
	return nil
}

func (u *User) adoptCredentials(auth *messaging.AuthResponse) {
	u.session = messaging.NewSession(u.client, auth)
	u.domain = auth.UserID.Domain()
	u.store.Put(u.username, Credential{
		UserID:      auth.UserID,
		AccessToken: auth.AccessToken,
		DeviceID:    auth.DeviceID,
		Domain:      u.domain,
		SyncToken:   "",
	})
}

// Logout stops background sync, invalidates the token on the server,
// and drops the in-memory session. The store entry is left intact so
// later runs still see the last published credential.
func (u *User) Logout(ctx context.Context) error {
	session, err := u.authed()
	if err != nil {
		return err
	}
	u.StopSync()
	err = session.Logout(ctx)
	u.stats.Record("logout", err)
	if err != nil {
		u.logger.Warn("logout failed", "error", err)
	}
	u.session = nil
	u.domain = ""
	return err
}

// CreateRoom creates a private-chat room, optionally with a local
// alias and initial invitees. Creation does not touch the membership
// tracker: the server auto-joins the creator, but the local view is
// reconciled through sync or an explicit join, the same way a real
// client does it.
func (u *User) CreateRoom(ctx context.Context, alias, name string, invitees []messaging.UserID) (messaging.RoomID, error) {
	session, err := u.authed()
	if err != nil {
		return "", err
	}

	request := messaging.CreateRoomRequest{
		Name:   name,
		Preset: "private_chat",
		Invite: invitees,
	}
	if alias != "" {
		request.Alias = alias
	}

	roomID, err := session.CreateRoom(ctx, request)
	u.stats.Record("create_room", err)
	if err != nil {
		u.logger.Error("failed to create room", "name", name, "error", err)
		return "", err
	}
	u.logger.Info("created room", "room_id", roomID)
	return roomID, nil
}

// JoinRoom joins the room and records the membership. Already-joined
// rooms short-circuit with no network I/O, so repeated joins are free.
// On success the room's data (avatars, display names, thumbnails) is
// prefetched as a side effect, like a client opening the room view.
func (u *User) JoinRoom(ctx context.Context, roomID messaging.RoomID) error {
	session, err := u.authed()
	if err != nil {
		return err
	}
	if u.membership.IsJoined(roomID) {
		return nil
	}

	_, err = session.JoinRoom(ctx, roomID)
	u.stats.Record("join_room", err)
	if err != nil {
		u.logger.Warn("failed to join room", "room_id", roomID, "error", err)
		return err
	}

	u.membership.MarkJoined(roomID)
	u.LoadRoomData(ctx, roomID)
	u.logger.Info("joined room", "room_id", roomID)
	return nil
}

// SendText sends a plain text message to the room.
func (u *User) SendText(ctx context.Context, roomID messaging.RoomID, body string) (messaging.EventID, error) {
	session, err := u.authed()
	if err != nil {
		return "", err
	}
	eventID, err := session.SendMessage(ctx, roomID, messaging.NewTextMessage(body))
	u.stats.Record("send_message", err)
	if err != nil {
		u.logger.Warn("failed to send message", "room_id", roomID, "error", err)
		return "", err
	}
	return eventID, nil
}

// SendReaction sends an emoji annotation for the given event.
func (u *User) SendReaction(ctx context.Context, roomID messaging.RoomID, eventID messaging.EventID, key string) error {
	session, err := u.authed()
	if err != nil {
		return err
	}
	_, err = session.SendReaction(ctx, roomID, messaging.NewReaction(eventID, key))
	u.stats.Record("send_reaction", err)
	if err != nil {
		u.logger.Warn("failed to send reaction", "room_id", roomID, "error", err)
	}
	return err
}

// SetTyping is fire-and-forget: failures are logged, never retried.
func (u *User) SetTyping(ctx context.Context, roomID messaging.RoomID, typing bool) error {
	session, err := u.authed()
	if err != nil {
		return err
	}
	err = session.SetTyping(ctx, roomID, typing, u.typingTimeout)
	u.stats.Record("typing", err)
	if err != nil {
		u.logger.Warn("failed to set typing", "room_id", roomID, "error", err)
	}
	return err
}

// SendReadReceipt is fire-and-forget: failures are logged, never retried.
func (u *User) SendReadReceipt(ctx context.Context, roomID messaging.RoomID, eventID messaging.EventID) error {
	session, err := u.authed()
	if err != nil {
		return err
	}
	err = session.SendReadReceipt(ctx, roomID, eventID)
	u.stats.Record("read_receipt", err)
	if err != nil {
		u.logger.Warn("failed to send read receipt", "room_id", roomID, "error", err)
	}
	return err
}

// SetDisplayName sets the profile display name. An empty name picks
// the default "User <n>" derived from the username's numeric suffix.
func (u *User) SetDisplayName(ctx context.Context, displayName string) error {
	session, err := u.authed()
	if err != nil {
		return err
	}
	if displayName == "" {
		parts := strings.Split(u.username, ".")
		displayName = "User " + parts[len(parts)-1]
	}
	err = session.SetDisplayName(ctx, displayName)
	u.stats.Record("set_displayname", err)
	if err != nil {
		u.logger.Warn("failed to set display name", "error", err)
	}
	return err
}

// UploadMedia uploads a blob to the media repository and returns its
// mxc URI. Identical bytes are uploaded once per run: the blob is
// content-addressed by BLAKE3 hash, so a thousand users sharing one
// avatar file pay for one upload each rather than one per operation.
func (u *User) UploadMedia(ctx context.Context, data []byte, contentType string) (string, error) {
	session, err := u.authed()
	if err != nil {
		return "", err
	}

	digest := blake3.Sum256(data)
	if mxcURI, ok := u.uploadedContent[digest]; ok {
		return mxcURI, nil
	}

	mxcURI, err := session.UploadMedia(ctx, contentType, bytes.NewReader(data))
	u.stats.Record("upload_media", err)
	if err != nil {
		u.logger.Warn("failed to upload media", "error", err)
		return "", err
	}
	u.uploadedContent[digest] = mxcURI
	return mxcURI, nil
}

// SetAvatarImage uploads the image file and points the profile avatar
// at it. An upload failure aborts before the profile update, leaving
// no partial state.
func (u *User) SetAvatarImage(ctx context.Context, filename string) error {
	session, err := u.authed()
	if err != nil {
		return err
	}

	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("loadtest: reading avatar %s: %w", filename, err)
	}
	contentType := mime.TypeByExtension(filepath.Ext(filename))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	mxcURI, err := u.UploadMedia(ctx, data, contentType)
	if err != nil {
		return err
	}

	err = session.SetAvatarURL(ctx, mxcURI)
	u.stats.Record("set_avatar_url", err)
	if err != nil {
		u.logger.Warn("failed to set avatar url", "error", err)
	}
	return err
}

// DownloadMedia fetches the blob behind an mxc locator, at most once
// per locator per run. The locator is marked fetched even when the
// download fails: retrying a broken resource on every timeline pass
// would distort the load profile.
func (u *User) DownloadMedia(ctx context.Context, locator string) error {
	_, err := u.authed()
	if err != nil {
		return err
	}

	serverName, mediaID, err := ParseMXC(locator)
	if err != nil {
		u.logger.Warn("unparseable media locator", "locator", locator)
		return err
	}

	if u.media.Fetched(locator) {
		return nil
	}

	err = u.session.DownloadMedia(ctx, serverName, mediaID)
	u.stats.Record("download_media", err)
	u.media.MarkFetched(locator)
	if err != nil {
		u.logger.Warn("failed to download media", "locator", locator, "error", err)
	}
	return err
}

// GetUserAvatarURL resolves a user's avatar locator, memoized for the
// run. The empty string means the user has no avatar.
func (u *User) GetUserAvatarURL(ctx context.Context, userID messaging.UserID) (string, error) {
	session, err := u.authed()
	if err != nil {
		return "", err
	}
	if avatarURL, ok := u.avatarURLs[userID]; ok {
		return avatarURL, nil
	}

	avatarURL, err := session.GetAvatarURL(ctx, userID)
	u.stats.Record("get_avatar_url", err)
	if err != nil {
		u.logger.Warn("failed to get avatar url", "user_id", userID, "error", err)
		return "", err
	}
	u.avatarURLs[userID] = avatarURL
	return avatarURL, nil
}

// GetUserDisplayName resolves a user's display name, memoized for the
// run.
func (u *User) GetUserDisplayName(ctx context.Context, userID messaging.UserID) (string, error) {
	session, err := u.authed()
	if err != nil {
		return "", err
	}
	if displayName, ok := u.displayNames[userID]; ok {
		return displayName, nil
	}

	displayName, err := session.GetDisplayName(ctx, userID)
	u.stats.Record("get_displayname", err)
	if err != nil {
		u.logger.Warn("failed to get display name", "user_id", userID, "error", err)
		return "", err
	}
	u.displayNames[userID] = displayName
	return displayName, nil
}

// RecentMessages returns a copy of the buffered timeline messages for
// a room, newest last.
func (u *User) RecentMessages(roomID messaging.RoomID) []messaging.Event {
	u.messagesMu.Lock()
	defer u.messagesMu.Unlock()
	messages := u.recentMessages[roomID]
	if len(messages) == 0 {
		return nil
	}
	out := make([]messaging.Event, len(messages))
	copy(out, messages)
	return out
}

// RandomJoinedRoom returns a uniformly selected joined room, or ""
// when none.
func (u *User) RandomJoinedRoom() messaging.RoomID {
	return u.membership.RandomJoinedRoom(u.rng)
}

// RandomInvitedRoom returns a uniformly selected pending invitation,
// or "" when none.
func (u *User) RandomInvitedRoom() messaging.RoomID {
	return u.membership.RandomInvitedRoom(u.rng)
}
