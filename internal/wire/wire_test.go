package wire

import (
	"net"
	"strings"
	"testing"
)

func TestTCPConnRoundTrip(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	serverConn := NewTCPConn(server)

	go func() {
		client.Write([]byte(`{"action":"CONNECT","pseudo":"alice"}` + "\n"))
	}()

	frame, err := serverConn.ReadFrame()
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}

	msg, err := DecodeClientMessage(frame)
	if err != nil {
		t.Fatalf("DecodeClientMessage: %v", err)
	}
	if msg.Action != ActionConnect || msg.Pseudo != "alice" {
		t.Errorf("decoded %+v, want CONNECT/alice", msg)
	}
}

func TestTCPConnMultipleFramesOneWrite(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	serverConn := NewTCPConn(server)

	go func() {
		client.Write([]byte(`{"action":"JOIN","pseudo":"a"}` + "\n" + `{"action":"LEAVE","pseudo":"a"}` + "\n"))
	}()

	first, err := serverConn.ReadFrame()
	if err != nil {
		t.Fatalf("first ReadFrame: %v", err)
	}
	second, err := serverConn.ReadFrame()
	if err != nil {
		t.Fatalf("second ReadFrame: %v", err)
	}

	m1, _ := DecodeClientMessage(first)
	m2, _ := DecodeClientMessage(second)
	if m1.Action != ActionJoin || m2.Action != ActionLeave {
		t.Errorf("got %q then %q, want JOIN then LEAVE", m1.Action, m2.Action)
	}
}

func TestTCPConnWriteFrameAppendsNewline(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	serverConn := NewTCPConn(server)

	go serverConn.WriteFrame([]byte(`{"action":"LEFT_QUEUE"}`))

	buf := make([]byte, 256)
	n, err := client.Read(buf)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	got := string(buf[:n])
	if !strings.HasSuffix(got, "\n") {
		t.Errorf("frame %q missing newline delimiter", got)
	}
}

func TestTCPConnOversizedFrame(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	serverConn := NewTCPConn(server)

	go func() {
		big := make([]byte, MaxFrameSize+2)
		for i := range big {
			big[i] = 'a'
		}
		big[len(big)-1] = '\n'
		client.Write(big)
	}()

	if _, err := serverConn.ReadFrame(); err != ErrFrameTooLarge {
		t.Errorf("ReadFrame error = %v, want ErrFrameTooLarge", err)
	}
}

func TestDecodeClientMessagePositionZero(t *testing.T) {
	msg, err := DecodeClientMessage([]byte(`{"action":"MOVE","pseudo":"a","match_id":7,"position":0}`))
	if err != nil {
		t.Fatalf("DecodeClientMessage: %v", err)
	}
	if msg.Position == nil || *msg.Position != 0 {
		t.Error("position 0 not preserved")
	}
	if msg.MatchID != 7 {
		t.Errorf("match_id = %d, want 7", msg.MatchID)
	}
}

func TestDecodeClientMessageMalformed(t *testing.T) {
	if _, err := DecodeClientMessage([]byte(`{"action":`)); err == nil {
		t.Error("malformed frame decoded without error")
	}
}

func TestDecodeClientMessageUnknownFieldsIgnored(t *testing.T) {
	msg, err := DecodeClientMessage([]byte(`{"action":"JOIN","pseudo":"a","extra":true}`))
	if err != nil {
		t.Fatalf("DecodeClientMessage: %v", err)
	}
	if msg.Action != ActionJoin {
		t.Errorf("action = %q, want JOIN", msg.Action)
	}
}
