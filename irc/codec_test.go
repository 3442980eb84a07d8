package irc

import "testing"

func TestDecode(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		kind    Kind
		account string
		channel string
		text    string
	}{
		{"welcome", ":tmi.twitch.tv 001 user :Welcome", KindWelcome, "user", "", ""},
		{"welcome crlf", ":tmi.twitch.tv 001 BotUser :Welcome, GLHF!\r\n", KindWelcome, "botuser", "", ""},
		{"ping", "PING :tmi.twitch.tv", KindPing, "", "", "tmi.twitch.tv"},
		{"ping prefix only", "PINGX", KindPing, "", "", "X"},
		{"join", ":bot!bot@bot.tmi.twitch.tv JOIN #somechannel", KindJoin, "bot", "somechannel", ""},
		{"part", ":bot!bot@bot.tmi.twitch.tv PART #somechannel", KindPart, "bot", "somechannel", ""},
		{"join uppercase channel", ":bot!bot@bot.tmi.twitch.tv JOIN #SomeChannel", KindJoin, "bot", "somechannel", ""},
		{"privmsg", "@badge-info=;color=#FF0000;display-name=Viewer :viewer!viewer@viewer.tmi.twitch.tv PRIVMSG #chan :hello there", KindMessage, "viewer", "chan", "hello there"},
		{"join with tags", "@emote-only=0 :bot!bot@bot.tmi.twitch.tv JOIN #Chan", KindJoin, "bot", "chan", ""},
		{"join without channel", ":bot!bot@bot.tmi.twitch.tv JOIN", KindJoin, "bot", "", ""},
		{"part mixed case nick", ":BotUser!botuser@botuser.tmi.twitch.tv PART #chan", KindPart, "botuser", "chan", ""},
		{"privmsg untagged", ":viewer!viewer@viewer.tmi.twitch.tv PRIVMSG #Chan :hi", KindMessage, "viewer", "chan", "hi"},
		{"privmsg without channel", ":viewer!viewer@viewer.tmi.twitch.tv PRIVMSG", KindUnknown, "", "", ""},
		{"cap ack", ":tmi.twitch.tv CAP * ACK :twitch.tv/membership", KindUnknown, "", "", ""},
		{"motd", ":tmi.twitch.tv 372 bot :You are in a maze of twisty passages.", KindUnknown, "", "", ""},
		{"single token", "garbage", KindUnknown, "", "", ""},
		{"empty", "", KindUnknown, "", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := Decode(tt.line)
			if ev.Kind != tt.kind {
				t.Fatalf("Decode(%q).Kind = %v, want %v", tt.line, ev.Kind, tt.kind)
			}
			if ev.Account != tt.account {
				t.Errorf("Account = %q, want %q", ev.Account, tt.account)
			}
			if ev.Channel != tt.channel {
				t.Errorf("Channel = %q, want %q", ev.Channel, tt.channel)
			}
			if tt.text != "" && ev.Text != tt.text {
				t.Errorf("Text = %q, want %q", ev.Text, tt.text)
			}
		})
	}
}

func TestDecodePrivmsgTags(t *testing.T) {
	ev := Decode("@user-id=12345;display-name=Viewer :viewer!viewer@viewer.tmi.twitch.tv PRIVMSG #chan :\x01ACTION waves\x01")
	if ev.Kind != KindMessage {
		t.Fatalf("Kind = %v, want message", ev.Kind)
	}
	if ev.UserID != "12345" {
		t.Errorf("UserID = %q, want 12345", ev.UserID)
	}
	if !ev.Action || ev.Text != "waves" {
		t.Errorf("Action = %v Text = %q, want action %q", ev.Action, ev.Text, "waves")
	}
}

func TestEncode(t *testing.T) {
	tests := []struct {
		got, want string
	}{
		{Pass("abc123"), "PASS oauth:abc123\n"},
		{Pass("oauth:abc123"), "PASS oauth:abc123\n"},
		{Pass("oauth:oauth:abc123"), "PASS oauth:abc123\n"},
		{Nick("bot"), "NICK bot\n"},
		{Join("chan"), "JOIN #chan\n"},
		{Part("chan"), "PART #chan\n"},
		{Privmsg("chan", "hi there"), "PRIVMSG #chan :hi there"},
		{Pong(), "PONG :tmi.twitch.tv\n"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("got %q, want %q", tt.got, tt.want)
		}
	}
}

func TestKindString(t *testing.T) {
	if KindWelcome.String() != "welcome" || Kind(99).String() != "unknown" {
		t.Errorf("unexpected kind names: %s %s", KindWelcome, Kind(99))
	}
}
