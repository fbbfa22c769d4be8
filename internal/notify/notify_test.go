package notify_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/daap14/affconsole/internal/notify"
)

func TestRecorder(t *testing.T) {
	t.Parallel()

	r := &notify.Recorder{}
	r.Notify(notify.LevelSuccess, "Signed in", "hi")
	r.Notify(notify.LevelError, "Sign in failed", "Invalid login")
	r.Notify(notify.LevelError, "Profile update failed", "boom")

	assert.Equal(t, 1, r.Count(notify.LevelSuccess))
	assert.Equal(t, 2, r.Count(notify.LevelError))
	assert.Equal(t, 0, r.Count(notify.LevelWarning))

	all := r.All()
	assert.Len(t, all, 3)
	assert.Equal(t, notify.Notification{Level: notify.LevelError, Title: "Sign in failed", Message: "Invalid login"}, all[1])

	all[0].Title = "changed"
	assert.Equal(t, "Signed in", r.All()[0].Title)
}

func TestFunc(t *testing.T) {
	t.Parallel()

	var got []string
	n := notify.Func(func(level notify.Level, title, message string) {
		got = append(got, string(level)+":"+title+":"+message)
	})
	n.Notify(notify.LevelWarning, "Profile setup incomplete", "retry later")
	notify.Discard.Notify(notify.LevelError, "ignored", "")

	assert.Equal(t, []string{"warning:Profile setup incomplete:retry later"}, got)
}
