package chat

import (
	"testing"
	"time"

	"chatnow/internal/clock"
)

func TestModeration_TimedMuteExpires(t *testing.T) {
	clk := clock.Fake(time.Unix(1700000000, 0))
	m := NewModeration(clk)

	expired := 0
	m.Mute("c1", time.Second, func() { expired++ })
	if !m.IsMuted("c1") {
		t.Fatal("IsMuted() after Mute = false")
	}

	clk.Advance(999 * time.Millisecond)
	if !m.IsMuted("c1") {
		t.Error("mute lifted before duration elapsed")
	}
	clk.Advance(2 * time.Millisecond)
	if m.IsMuted("c1") {
		t.Error("IsMuted() after duration = true, want false")
	}
	if expired != 1 {
		t.Errorf("onExpire calls = %d, want 1", expired)
	}
}

func TestModeration_RemuteCancelsOldTimer(t *testing.T) {
	clk := clock.Fake(time.Unix(1700000000, 0))
	m := NewModeration(clk)

	first, second := 0, 0
	m.Mute("c1", time.Second, func() { first++ })
	m.Mute("c1", 5*time.Second, func() { second++ })

	clk.Advance(2 * time.Second)
	if !m.IsMuted("c1") {
		t.Error("old timer lifted the newer mute")
	}
	if first != 0 {
		t.Errorf("stale onExpire calls = %d, want 0", first)
	}
	clk.Advance(4 * time.Second)
	if m.IsMuted("c1") || second != 1 {
		t.Errorf("after 6s: muted=%v second=%d, want false 1", m.IsMuted("c1"), second)
	}
}

func TestModeration_IndefiniteMute(t *testing.T) {
	clk := clock.Fake(time.Unix(1700000000, 0))
	m := NewModeration(clk)

	m.Mute("c1", 0, nil)
	if clk.Pending() != 0 {
		t.Errorf("Pending() = %d, want 0 for indefinite mute", clk.Pending())
	}
	clk.Advance(time.Hour)
	if !m.IsMuted("c1") {
		t.Error("indefinite mute expired")
	}
	if !m.Unmute("c1") {
		t.Error("Unmute() = false, want true")
	}
	if m.Unmute("c1") {
		t.Error("second Unmute() = true, want false")
	}
}

func TestModeration_ForgetCancelsTimer(t *testing.T) {
	clk := clock.Fake(time.Unix(1700000000, 0))
	m := NewModeration(clk)

	called := false
	m.Mute("c1", time.Second, func() { called = true })
	m.Forget("c1")
	if clk.Pending() != 0 {
		t.Errorf("Pending() after Forget = %d, want 0", clk.Pending())
	}

	// 相同连接 ID 被重新使用时，旧定时器不能作用到新状态上
	m.Mute("c1", 0, nil)
	clk.Advance(2 * time.Second)
	if called {
		t.Error("onExpire fired after Forget")
	}
	if !m.IsMuted("c1") {
		t.Error("new mute was lifted by a forgotten timer")
	}
}

func TestModeration_Bans(t *testing.T) {
	m := NewModeration(clock.Fake(time.Unix(1700000000, 0)))

	if m.Ban("") {
		t.Error("Ban(\"\") = true, want false")
	}
	if !m.Ban("10.0.0.2") || !m.Ban("10.0.0.1") {
		t.Fatal("Ban() of new address = false")
	}
	if m.Ban("10.0.0.1") {
		t.Error("Ban() of banned address = true, want false")
	}
	if !m.IsBanned("10.0.0.1") {
		t.Error("IsBanned() = false, want true")
	}
	got := m.Bans()
	if len(got) != 2 || got[0] != "10.0.0.1" {
		t.Errorf("Bans() = %v, want sorted [10.0.0.1 10.0.0.2]", got)
	}
	m.Unban("10.0.0.1")
	if m.IsBanned("10.0.0.1") {
		t.Error("IsBanned() after Unban = true")
	}
}

func TestModeration_Close(t *testing.T) {
	clk := clock.Fake(time.Unix(1700000000, 0))
	m := NewModeration(clk)
	m.Mute("a", time.Second, nil)
	m.Mute("b", time.Minute, nil)

	m.Close()
	if clk.Pending() != 0 {
		t.Errorf("Pending() after Close = %d, want 0", clk.Pending())
	}
}
