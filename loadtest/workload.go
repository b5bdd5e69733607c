// Copyright 2026 The Stampede Authors
// SPDX-License-Identifier: Apache-2.0

package loadtest

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// TaskWeights sets the relative frequency of each workload task. A
// zero weight disables the task. The defaults approximate a lurker-
// heavy chat population: mostly idle, reading more than writing.
type TaskWeights struct {
	DoNothing         int `yaml:"do_nothing"`
	SendText          int `yaml:"send_text"`
	LookAtRoom        int `yaml:"look_at_room"`
	Paginate          int `yaml:"paginate"`
	React             int `yaml:"react"`
	AcceptInvite      int `yaml:"accept_invite"`
	ChangeDisplayName int `yaml:"change_displayname"`
	ChangeAvatar      int `yaml:"change_avatar"`
	GoAFK             int `yaml:"go_afk"`
}

// DefaultTaskWeights returns the standard chat-population mix.
func DefaultTaskWeights() TaskWeights {
	return TaskWeights{
		DoNothing:         11,
		SendText:          3,
		LookAtRoom:        5,
		Paginate:          1,
		React:             1,
		AcceptInvite:      2,
		ChangeDisplayName: 1,
		ChangeAvatar:      1,
		GoAFK:             1,
	}
}

func (w TaskWeights) total() int {
	return w.DoNothing + w.SendText + w.LookAtRoom + w.Paginate +
		w.React + w.AcceptInvite + w.ChangeDisplayName + w.ChangeAvatar + w.GoAFK
}

// WorkloadConfig configures a Workload.
type WorkloadConfig struct {
	Weights TaskWeights
	// ThinkTime is the mean of the exponential pause between tasks.
	// Zero uses 5 seconds.
	ThinkTime time.Duration
	// AvatarDir holds image files for the change-avatar task. Empty
	// disables that task regardless of its weight.
	AvatarDir string
	Logger    *slog.Logger
}

// Workload drives one User through a weighted random mix of chat
// behaviors until the context is cancelled. Task selection, message
// length, and think time all come from the user's random source, so
// two users never move in lockstep.
type Workload struct {
	user      *User
	weights   TaskWeights
	thinkTime time.Duration
	avatars   []string
	logger    *slog.Logger
	rng       *rand.Rand
}

// NewWorkload creates a workload for the user. The avatar directory is
// listed once up front; an unreadable or empty directory just disables
// the change-avatar task.
func NewWorkload(user *User, config WorkloadConfig) (*Workload, error) {
	if user == nil {
		return nil, fmt.Errorf("loadtest: user is required")
	}
	if config.Weights.total() <= 0 {
		config.Weights = DefaultTaskWeights()
	}
	thinkTime := config.ThinkTime
	if thinkTime <= 0 {
		thinkTime = 5 * time.Second
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var avatars []string
	if config.AvatarDir != "" {
		entries, err := os.ReadDir(config.AvatarDir)
		if err != nil {
			logger.Warn("cannot list avatar directory", "dir", config.AvatarDir, "error", err)
		}
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			avatars = append(avatars, filepath.Join(config.AvatarDir, entry.Name()))
		}
	}
	if len(avatars) == 0 {
		config.Weights.ChangeAvatar = 0
	}
	if config.Weights.total() <= 0 {
		config.Weights.DoNothing = 1
	}

	return &Workload{
		user:      user,
		weights:   config.Weights,
		thinkTime: thinkTime,
		avatars:   avatars,
		logger:    logger.With("username", user.Username()),
		rng:       user.rng,
	}, nil
}

// Run executes tasks until the context is cancelled. Individual task
// failures are logged and absorbed; the loop keeps going for the life
// of the test.
func (w *Workload) Run(ctx context.Context) {
	for ctx.Err() == nil {
		w.runTask(ctx)
		w.pause(ctx, w.thinkTime)
	}
}

func (w *Workload) runTask(ctx context.Context) {
	pick := w.rng.IntN(w.weights.total())

	if pick -= w.weights.DoNothing; pick < 0 {
		return
	}
	if pick -= w.weights.SendText; pick < 0 {
		w.sendText(ctx)
		return
	}
	if pick -= w.weights.LookAtRoom; pick < 0 {
		w.lookAtRoom(ctx)
		return
	}
	if pick -= w.weights.Paginate; pick < 0 {
		w.paginate(ctx)
		return
	}
	if pick -= w.weights.React; pick < 0 {
		w.react(ctx)
		return
	}
	if pick -= w.weights.AcceptInvite; pick < 0 {
		w.acceptInvite(ctx)
		return
	}
	if pick -= w.weights.ChangeDisplayName; pick < 0 {
		w.changeDisplayName(ctx)
		return
	}
	if pick -= w.weights.ChangeAvatar; pick < 0 {
		w.changeAvatar(ctx)
		return
	}
	w.goAFK(ctx)
}

// sendText composes and sends a message to a random joined room, with
// a typing notification and a composition pause first, the way a human
// sender looks to everyone else in the room.
func (w *Workload) sendText(ctx context.Context) {
	roomID := w.user.RandomJoinedRoom()
	if roomID == "" {
		return
	}

	w.user.SetTyping(ctx, roomID, true)
	w.pause(ctx, 3*time.Second)
	if ctx.Err() != nil {
		return
	}
	w.user.SendText(ctx, roomID, w.loremText())
}

// lookAtRoom opens a random joined room: prefetches its avatars and
// thumbnails and acknowledges the newest message with a read receipt.
func (w *Workload) lookAtRoom(ctx context.Context) {
	roomID := w.user.RandomJoinedRoom()
	if roomID == "" {
		return
	}

	w.user.LoadRoomData(ctx, roomID)
	messages := w.user.RecentMessages(roomID)
	if len(messages) == 0 {
		return
	}
	latest := messages[len(messages)-1]
	if latest.EventID != "" {
		w.user.SendReadReceipt(ctx, roomID, latest.EventID)
	}
}

func (w *Workload) paginate(ctx context.Context) {
	roomID := w.user.RandomJoinedRoom()
	if roomID == "" {
		return
	}
	w.user.Paginate(ctx, roomID, 20)
}

var reactionKeys = []string{"👍", "❤️", "😂", "🎉", "😢", "🔥"}

func (w *Workload) react(ctx context.Context) {
	roomID := w.user.RandomJoinedRoom()
	if roomID == "" {
		return
	}
	messages := w.user.RecentMessages(roomID)
	if len(messages) == 0 {
		return
	}
	target := messages[w.rng.IntN(len(messages))]
	if target.EventID == "" {
		return
	}
	key := reactionKeys[w.rng.IntN(len(reactionKeys))]
	w.user.SendReaction(ctx, roomID, target.EventID, key)
}

func (w *Workload) acceptInvite(ctx context.Context) {
	roomID := w.user.RandomInvitedRoom()
	if roomID == "" {
		return
	}
	w.user.JoinRoom(ctx, roomID)
}

var displayNameWords = []string{
	"Wandering", "Quiet", "Rapid", "Curious", "Patient",
	"Brave", "Sly", "Gentle", "Restless", "Lucky",
}

func (w *Workload) changeDisplayName(ctx context.Context) {
	parts := strings.Split(w.user.Username(), ".")
	name := fmt.Sprintf("%s User %s", displayNameWords[w.rng.IntN(len(displayNameWords))], parts[len(parts)-1])
	w.user.SetDisplayName(ctx, name)
}

func (w *Workload) changeAvatar(ctx context.Context) {
	filename := w.avatars[w.rng.IntN(len(w.avatars))]
	w.user.SetAvatarImage(ctx, filename)
}

// goAFK drops off for a while: the sync loop stops, the user sleeps an
// extended exponential period, then syncing resumes.
func (w *Workload) goAFK(ctx context.Context) {
	w.logger.Debug("going AFK")
	w.user.StopSync()
	w.pause(ctx, 5*w.thinkTime)
	if ctx.Err() != nil {
		return
	}
	w.user.StartSync(ctx)
}

// pause sleeps an exponentially distributed duration with the given
// mean, returning early on cancellation.
func (w *Workload) pause(ctx context.Context, mean time.Duration) {
	delay := time.Duration(w.rng.ExpFloat64() * float64(mean))
	if delay <= 0 {
		return
	}
	select {
	case <-ctx.Done():
	case <-time.After(delay):
	}
}

var loremWords = []string{
	"lorem", "ipsum", "dolor", "sit", "amet", "consectetur",
	"adipiscing", "elit", "sed", "do", "eiusmod", "tempor",
	"incididunt", "ut", "labore", "et", "dolore", "magna",
	"aliqua", "enim", "ad", "minim", "veniam", "quis",
	"nostrud", "exercitation", "ullamco", "laboris", "nisi",
	"aliquip", "ex", "ea", "commodo", "consequat",
}

// loremText builds a message whose word count follows a lognormal
// distribution, which tracks real chat message lengths far better
// than a uniform draw: lots of short quips, the occasional paragraph.
func (w *Workload) loremText() string {
	words := int(math.Round(math.Exp(w.rng.NormFloat64() + 1.0)))
	if words < 1 {
		words = 1
	}
	if words > 60 {
		words = 60
	}

	out := make([]string, words)
	for i := range out {
		out[i] = loremWords[w.rng.IntN(len(loremWords))]
	}
	return strings.Join(out, " ")
}
