package models

import "testing"

func TestChatLogLastSender_SkipsSystemEntries(t *testing.T) {
	var log ChatLog
	if _, ok := log.LastSender(); ok {
		t.Fatal("empty log should have no last sender")
	}

	log = log.Append(ChatSenderSeeker, AgentActionAsk, "what color is it?")
	log = log.Append(ChatSenderFinder, AgentActionAnswer, "blue with a white stripe")
	log = log.Append(ChatSenderSystem, "", "conversation paused")

	sender, ok := log.LastSender()
	if !ok {
		t.Fatal("expected a last sender")
	}
	if sender != ChatSenderFinder {
		t.Errorf("LastSender() = %s, want %s", sender, ChatSenderFinder)
	}
}

func TestChatLogAppend_CopiesDoNotAlias(t *testing.T) {
	base := ChatLog{}.Append(ChatSenderSeeker, AgentActionAsk, "first")
	a := base.Append(ChatSenderFinder, AgentActionAnswer, "second")
	b := base.Append(ChatSenderFinder, AgentActionAnswer, "other second")

	if len(base) != 1 || len(a) != 2 || len(b) != 2 {
		t.Fatalf("unexpected lengths: base=%d a=%d b=%d", len(base), len(a), len(b))
	}
	if a[1].Content == b[1].Content {
		t.Fatal("expected diverging appends to stay independent")
	}
	if base[0].Timestamp.IsZero() {
		t.Error("Append should stamp entries with a timestamp")
	}
}
