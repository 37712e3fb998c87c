// Package kbd is the watcher's non-blocking keyboard reader: it funnels
// single key presses into a channel on its own goroutine with
// atomicgo.dev/keyboard.
package kbd

import (
	"sync/atomic"

	"atomicgo.dev/keyboard"
	"atomicgo.dev/keyboard/keys"
)

// Reader funnels single rune key presses (and Ctrl+C) into Input. Ctrl+C
// is reported as the rune 'q'; both mean quit.
type Reader struct {
	Input    chan rune
	stopping atomic.Bool
}

// Start begins listening for keyboard input on a background goroutine and
// returns immediately. Call Stop to release the terminal.
func Start() (*Reader, error) {
	r := &Reader{Input: make(chan rune, 8)}

	go func() {
		_ = keyboard.Listen(func(key keys.Key) (stop bool, err error) {
			if r.stopping.Load() {
				return true, nil
			}
			if key.Code == keys.CtrlC {
				r.send('q')
				return true, nil
			}
			// Debug mode advances on Enter, which is not a rune key.
			if key.Code == keys.Enter {
				r.send('\n')
				return false, nil
			}
			if key.Code != keys.RuneKey || len(key.Runes) == 0 {
				return false, nil
			}
			r.send(key.Runes[0])
			return false, nil
		})
	}()
	return r, nil
}

// send never blocks: a reader that has fallen behind just loses the
// keystroke, which beats wedging the listener goroutine.
func (r *Reader) send(ch rune) {
	select {
	case r.Input <- ch:
	default:
	}
}

// Stop releases the terminal. keyboard.Listen only returns from inside its
// handler, so a key press is simulated to give the handler a chance to
// observe the stop flag.
func (r *Reader) Stop() {
	r.stopping.Store(true)
	_ = keyboard.SimulateKeyPress('q')
}
