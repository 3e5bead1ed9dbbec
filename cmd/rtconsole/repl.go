package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	openairt "github.com/codewandler/openairt-console"
	"github.com/codewandler/openairt-console/console"
	"github.com/codewandler/openairt-console/internal/config"
)

const helpText = `commands:
  connect              open the microphone, speaker and session
  disconnect           close everything and clear the conversation
  mode manual|vad      switch between push-to-talk and voice activity detection
  talk                 start a push-to-talk turn (manual mode)
  send                 end the push-to-talk turn and ask for a response
  say <text>           send a typed message
  items                show the conversation
  log [n]              show the last n events (all by default)
  inspect <n>          show event n with audio payloads trimmed
  delete <id|#n>       delete a conversation item
  status               show the session state
  reset-key            store a new API key
  quit                 disconnect and exit`

var errQuit = errors.New("quit")

type repl struct {
	ctrl     *console.Controller
	out      *renderer
	lines    *bufio.Scanner
	secret   func() (string, error)
	store    *config.CredentialStore
	key      string
	relayURL string

	// mu guards printing and printed; change notifications arrive on the
	// session's goroutine.
	mu      sync.Mutex
	printed map[string]bool
}

// parseCommand splits a line into a lower-cased command and its argument.
func parseCommand(line string) (string, string) {
	line = strings.TrimSpace(line)
	name, arg, _ := strings.Cut(line, " ")
	return strings.ToLower(name), strings.TrimSpace(arg)
}

func (r *repl) printf(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.out.out, format, args...)
}

func (r *repl) run(ctx context.Context) error {
	r.printf("Realtime Arithmetic Console. Type \"help\" for commands.\n")
	for {
		r.printf("> ")
		line, ok := r.next(ctx)
		if !ok {
			break
		}
		if err := r.exec(ctx, line); err != nil {
			if errors.Is(err, errQuit) {
				break
			}
			r.printf("error: %v\n", err)
		}
	}
	return r.ctrl.Disconnect()
}

// next reads a line, giving up when ctx is done.
func (r *repl) next(ctx context.Context) (string, bool) {
	type result struct {
		line string
		ok   bool
	}
	ch := make(chan result, 1)
	go func() {
		ok := r.lines.Scan()
		ch <- result{r.lines.Text(), ok}
	}()
	select {
	case res := <-ch:
		return res.line, res.ok
	case <-ctx.Done():
		return "", false
	}
}

func (r *repl) exec(ctx context.Context, line string) error {
	name, arg := parseCommand(line)
	switch name {
	case "":
		return nil
	case "help", "?":
		r.printf("%s\n", helpText)
	case "quit", "exit":
		return errQuit
	case "connect":
		if err := r.ctrl.Connect(ctx); err != nil {
			return err
		}
		r.status()
	case "disconnect":
		if err := r.ctrl.Disconnect(); err != nil {
			return err
		}
		r.mu.Lock()
		clear(r.printed)
		r.mu.Unlock()
		r.status()
	case "mode":
		mode, err := console.ParseTurnMode(arg)
		if err != nil {
			return err
		}
		if err := r.ctrl.SetTurnDetectionMode(ctx, mode); err != nil {
			return err
		}
		r.status()
	case "talk":
		if err := r.ctrl.StartPushToTalk(ctx); err != nil {
			return err
		}
		r.printf("recording, type \"send\" to finish\n")
	case "send":
		return r.ctrl.StopPushToTalk(ctx)
	case "say":
		if arg == "" {
			return errors.New("say needs some text")
		}
		return r.ctrl.SendText(arg)
	case "items":
		r.mu.Lock()
		r.out.items(r.ctrl.Snapshot().Items)
		r.mu.Unlock()
	case "log":
		limit := 0
		if arg != "" {
			n, err := strconv.Atoi(arg)
			if err != nil || n < 0 {
				return fmt.Errorf("invalid event count %q", arg)
			}
			limit = n
		}
		s := r.ctrl.Snapshot()
		r.mu.Lock()
		r.out.events(s.Events, s.StartedAt, limit)
		r.mu.Unlock()
	case "inspect":
		s := r.ctrl.Snapshot()
		n, err := strconv.Atoi(arg)
		if err != nil || n < 1 || n > len(s.Events) {
			return fmt.Errorf("no event %q", arg)
		}
		r.mu.Lock()
		defer r.mu.Unlock()
		return r.out.inspect(s.Events[n-1])
	case "delete":
		id, err := resolveItemID(r.ctrl.Snapshot().Items, arg)
		if err != nil {
			return err
		}
		return r.ctrl.DeleteItem(id)
	case "status":
		r.status()
	case "reset-key":
		return r.resetKey()
	default:
		return fmt.Errorf("unknown command %q, try \"help\"", name)
	}
	return nil
}

// resolveItemID accepts an item id or a 1-based position prefixed with #.
func resolveItemID(items []openairt.Item, arg string) (string, error) {
	if arg == "" {
		return "", errors.New("delete needs an item id")
	}
	if pos, ok := strings.CutPrefix(arg, "#"); ok {
		n, err := strconv.Atoi(pos)
		if err != nil || n < 1 || n > len(items) {
			return "", fmt.Errorf("no item %s", arg)
		}
		return items[n-1].ID, nil
	}
	return arg, nil
}

func (r *repl) status() {
	s := r.ctrl.Snapshot()
	r.mu.Lock()
	defer r.mu.Unlock()
	r.out.status(s, r.key)
}

func (r *repl) resetKey() error {
	if r.relayURL != "" {
		return errors.New("the relay holds the key, nothing to reset")
	}
	r.printf("OpenAI API Key: ")
	key, err := r.secret()
	r.printf("\n")
	if err != nil {
		return err
	}
	if err := r.store.Reset(); err != nil {
		return err
	}
	if err := r.store.Save(key); err != nil {
		return err
	}
	r.printf("api key %s saved, restart rtconsole to use it\n", maskKey(key))
	return nil
}

// changed prints items as they complete.
func (r *repl) changed() {
	if r.ctrl == nil {
		return
	}
	items := r.ctrl.Snapshot().Items

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, it := range items {
		if r.printed[it.ID] || !printable(it) {
			continue
		}
		r.printed[it.ID] = true
		r.out.line(it)
	}
}

func printable(it openairt.Item) bool {
	switch it.Status {
	case openairt.StatusCompleted, openairt.StatusTruncated, openairt.StatusIncomplete:
	default:
		return false
	}
	// user audio is printed once its transcript arrives
	if it.Role == openairt.RoleUser && len(it.Formatted.Audio) > 0 && it.Formatted.Transcript == "" {
		return false
	}
	return true
}
