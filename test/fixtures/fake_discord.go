// Package fixtures provides test helpers for integration tests.
package fixtures

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"sync"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/multierr"

	"github.com/eliteGoblin/focusd/figpresence/internal/discord"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// FakeDiscord speaks the server side of Discord's IPC protocol and records
// every activity it receives. A nil entry in Activities is a clear.
type FakeDiscord struct {
	mu         sync.Mutex
	conns      map[net.Conn]*sync.Mutex
	activities []*discord.Activity
	clientIDs  []string
	pongs      int
	rejectID   string
	failSends  int
	stall      bool

	ln net.Listener
	wg sync.WaitGroup
}

// NewFakeDiscord creates a server that is not yet listening.
func NewFakeDiscord() *FakeDiscord {
	return &FakeDiscord{conns: make(map[net.Conn]*sync.Mutex)}
}

// Listen serves on a unix socket named discord-ipc-0 inside dir.
func (f *FakeDiscord) Listen(dir string) error {
	path := filepath.Join(dir, "discord-ipc-0")
	_ = os.Remove(path)
	ln, err := net.Listen("unix", path)
	if err != nil {
		return err
	}
	f.mu.Lock()
	f.ln = ln
	f.mu.Unlock()

	f.wg.Add(1)
	go func() {
		defer f.wg.Done()
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			f.wg.Add(1)
			go func() {
				defer f.wg.Done()
				f.Serve(conn)
			}()
		}
	}()
	return nil
}

// Dial returns an in-memory connection served by f.
func (f *FakeDiscord) Dial(ctx context.Context) (net.Conn, error) {
	client, server := net.Pipe()
	f.wg.Add(1)
	go func() {
		defer f.wg.Done()
		f.Serve(server)
	}()
	return client, nil
}

// Serve handles one client connection until it closes.
func (f *FakeDiscord) Serve(conn net.Conn) {
	writeMu := &sync.Mutex{}
	f.mu.Lock()
	f.conns[conn] = writeMu
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		delete(f.conns, conn)
		f.mu.Unlock()
		conn.Close()
	}()

	write := func(op discord.Opcode, v interface{}) error {
		body, err := json.Marshal(v)
		if err != nil {
			return err
		}
		writeMu.Lock()
		defer writeMu.Unlock()
		return discord.WriteFrame(conn, op, body)
	}

	op, body, err := discord.ReadFrame(conn)
	if err != nil || op != discord.OpHandshake {
		return
	}
	var hs discord.Handshake
	if err := json.Unmarshal(body, &hs); err != nil {
		return
	}

	f.mu.Lock()
	f.clientIDs = append(f.clientIDs, hs.ClientID)
	reject := f.rejectID != "" && hs.ClientID == f.rejectID
	stall := f.stall
	f.mu.Unlock()

	if reject {
		_ = write(discord.OpClose, discord.RPCError{Code: 4000, Message: "Invalid Client ID"})
		return
	}
	if !stall {
		ready := map[string]interface{}{
			"v":    1,
			"user": map[string]string{"id": "1", "username": "tester"},
		}
		data, _ := json.Marshal(ready)
		if err := write(discord.OpFrame, discord.Message{Cmd: "DISPATCH", Evt: "READY", Data: data}); err != nil {
			return
		}
	}

	for {
		op, body, err := discord.ReadFrame(conn)
		if err != nil {
			return
		}
		switch op {
		case discord.OpPing:
			_ = write(discord.OpPong, jsoniter.RawMessage(body))
		case discord.OpPong:
			f.mu.Lock()
			f.pongs++
			f.mu.Unlock()
		case discord.OpClose:
			return
		case discord.OpFrame:
			if err := f.handleCommand(body, write); err != nil {
				return
			}
		}
	}
}

type setActivityCommand struct {
	Cmd   string               `json:"cmd"`
	Nonce string               `json:"nonce"`
	Args  discord.ActivityArgs `json:"args"`
}

func (f *FakeDiscord) handleCommand(body []byte, write func(discord.Opcode, interface{}) error) error {
	var cmd setActivityCommand
	if err := json.Unmarshal(body, &cmd); err != nil {
		return err
	}

	f.mu.Lock()
	fail := f.failSends > 0
	if fail {
		f.failSends--
	} else if cmd.Cmd == "SET_ACTIVITY" {
		f.activities = append(f.activities, cmd.Args.Activity)
	}
	f.mu.Unlock()

	if fail {
		data, _ := json.Marshal(discord.RPCError{Code: 4002, Message: "rate limited"})
		return write(discord.OpFrame, discord.Message{Cmd: cmd.Cmd, Evt: "ERROR", Nonce: cmd.Nonce, Data: data})
	}
	data, _ := json.Marshal(cmd.Args.Activity)
	return write(discord.OpFrame, discord.Message{Cmd: cmd.Cmd, Nonce: cmd.Nonce, Data: data})
}

// Activities returns every SET_ACTIVITY received, in order.
func (f *FakeDiscord) Activities() []*discord.Activity {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*discord.Activity, len(f.activities))
	copy(out, f.activities)
	return out
}

// LastActivity returns the most recent SET_ACTIVITY; ok is false if none arrived.
func (f *FakeDiscord) LastActivity() (*discord.Activity, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.activities) == 0 {
		return nil, false
	}
	return f.activities[len(f.activities)-1], true
}

// Handshakes returns the client IDs of every handshake, in order.
func (f *FakeDiscord) Handshakes() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.clientIDs))
	copy(out, f.clientIDs)
	return out
}

// Connections returns the number of open client connections.
func (f *FakeDiscord) Connections() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.conns)
}

// Pongs returns how many PONG frames clients sent.
func (f *FakeDiscord) Pongs() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pongs
}

// RejectClientID makes handshakes with id fail with a CLOSE frame.
func (f *FakeDiscord) RejectClientID(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rejectID = id
}

// FailNextSends answers the next n commands with an ERROR event.
func (f *FakeDiscord) FailNextSends(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failSends = n
}

// StallHandshake stops the server from sending READY.
func (f *FakeDiscord) StallHandshake(stall bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stall = stall
}

// Ping sends a PING to every connected client.
func (f *FakeDiscord) Ping() error {
	f.mu.Lock()
	conns := make(map[net.Conn]*sync.Mutex, len(f.conns))
	for conn, writeMu := range f.conns {
		conns[conn] = writeMu
	}
	f.mu.Unlock()

	var err error
	for conn, writeMu := range conns {
		writeMu.Lock()
		err = multierr.Append(err, discord.WriteFrame(conn, discord.OpPing, []byte(`{"ping":1}`)))
		writeMu.Unlock()
	}
	return err
}

// Kick drops every client connection, as when Discord quits.
func (f *FakeDiscord) Kick() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for conn := range f.conns {
		conn.Close()
	}
}

// Close stops listening and drops all clients.
func (f *FakeDiscord) Close() error {
	f.mu.Lock()
	ln := f.ln
	f.ln = nil
	f.mu.Unlock()

	var err error
	if ln != nil {
		err = ln.Close()
	}
	f.Kick()
	f.wg.Wait()
	return err
}
