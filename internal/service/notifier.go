package service

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"
)

type NoticeKind string

const (
	NoticeSuccess NoticeKind = "success"
	NoticeError   NoticeKind = "error"
)

// Notice is a user-facing outcome message.
type Notice struct {
	Kind    NoticeKind `json:"kind"`
	Title   string     `json:"title"`
	Message string     `json:"message"`
}

// Notifier surfaces action outcomes to the user.
type Notifier interface {
	Notify(ctx context.Context, notice Notice)
}

type LogNotifier struct{}

func (LogNotifier) Notify(ctx context.Context, notice Notice) {
	event := log.Info()
	if notice.Kind == NoticeError {
		event = log.Warn()
	}
	event.
		Str("kind", string(notice.Kind)).
		Str("title", notice.Title).
		Msg(notice.Message)
}

// RecordingNotifier keeps every notice it receives.
type RecordingNotifier struct {
	mu      sync.Mutex
	notices []Notice
}

func (r *RecordingNotifier) Notify(ctx context.Context, notice Notice) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, notice)
}

func (r *RecordingNotifier) Notices() []Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Notice, len(r.notices))
	copy(out, r.notices)
	return out
}

// Last returns the most recent notice, or false if none arrived yet.
func (r *RecordingNotifier) Last() (Notice, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.notices) == 0 {
		return Notice{}, false
	}
	return r.notices[len(r.notices)-1], true
}

var (
	noticeCodeGenerated = Notice{NoticeSuccess, "Success", "Tether code generated! Share it with your connection."}
	noticeGenerateFail  = Notice{NoticeError, "Error", "Failed to generate code. Please try again."}
	noticeAlreadyPaired = Notice{NoticeError, "Error", "You're already in a relationship!"}
	noticeInvalidCode   = Notice{NoticeError, "Error", "Please enter a valid 8-character code"}
	noticeUnavailable   = Notice{NoticeError, "Connection Failed", "Sorry, this person is already in a relationship."}
	noticeRedeemFail    = Notice{NoticeError, "Error", "Something went wrong. Please try again."}
	noticeEnded         = Notice{NoticeSuccess, "Success", "Connection ended. Both parties have been notified."}
	noticeEndFail       = Notice{NoticeError, "Error", "Failed to end relationship. Please try again."}
)

func noticeConnected(partnerName string) Notice {
	return Notice{NoticeSuccess, "Success", "You're now connected with " + partnerName + "!"}
}

// MultiNotifier forwards every notice to each of its notifiers in order.
type MultiNotifier []Notifier

func (m MultiNotifier) Notify(ctx context.Context, notice Notice) {
	for _, n := range m {
		n.Notify(ctx, notice)
	}
}
