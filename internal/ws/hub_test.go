package ws

import "testing"

func TestHubAddAndRemoveChatClient(t *testing.T) {
	hub := NewHub()

	hub.AddChatClient(1, nil, ConnInfo{ConnID: "a"})
	if len(hub.chatRooms) != 1 {
		t.Fatalf("expected chat room to be created")
	}

	hub.RemoveChatClient(1, nil)
	if len(hub.chatRooms) != 0 {
		t.Fatalf("expected chat room to be removed")
	}
}

func TestHubAddAndRemoveFeedClient(t *testing.T) {
	hub := NewHub()

	hub.AddFeedClient(42, nil, ConnInfo{ConnID: "b"})
	if len(hub.userFeeds) != 1 {
		t.Fatalf("expected user feed to be created")
	}

	hub.RemoveFeedClient(42, nil)
	if len(hub.userFeeds) != 0 {
		t.Fatalf("expected user feed to be removed")
	}
}
