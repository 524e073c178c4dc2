package controller

import (
	"fmt"
	"io"
	"time"
)

// Snapshot is a point-in-time view of the controller for diagnostics.
type Snapshot struct {
	Live bool

	Token     string
	Component string
	Preview   bool
	CanDoze   bool
	UserID    int

	Bound              bool
	Connected          bool
	Attached           bool
	SentStartBroadcast bool
	WakingGently       bool

	StartedAt time.Time
}

// Snapshot captures the controller's state via the control loop, so the
// result is internally consistent. It blocks until the loop services the
// request and must not be called from the loop itself.
func (c *Controller) Snapshot() (Snapshot, error) {
	var snap Snapshot
	err := c.loop.Call(func() {
		s := c.current
		if s == nil {
			return
		}
		snap = Snapshot{
			Live:               true,
			Token:              s.token,
			Component:          s.target.Component,
			Preview:            s.target.Preview,
			CanDoze:            s.target.CanDoze,
			UserID:             s.target.UserID,
			Bound:              s.bound,
			Connected:          s.connected,
			Attached:           s.service != nil,
			SentStartBroadcast: s.sentStartBroadcast,
			WakingGently:       s.wakingGently,
			StartedAt:          s.startedAt,
		}
	})
	return snap, err
}

// Dump writes a human-readable state report to w.
func (c *Controller) Dump(w io.Writer) error {
	snap, err := c.Snapshot()
	if err != nil {
		return err
	}
	fmt.Fprintln(w, "Controller:")
	if !snap.Live {
		fmt.Fprintln(w, "  current session: none")
		return nil
	}
	fmt.Fprintf(w, "  current session: %s\n", snap.Token)
	fmt.Fprintf(w, "    component: %s\n", snap.Component)
	fmt.Fprintf(w, "    user: %d\n", snap.UserID)
	fmt.Fprintf(w, "    preview: %t\n", snap.Preview)
	fmt.Fprintf(w, "    can doze: %t\n", snap.CanDoze)
	fmt.Fprintf(w, "    bound: %t\n", snap.Bound)
	fmt.Fprintf(w, "    connected: %t\n", snap.Connected)
	fmt.Fprintf(w, "    attached: %t\n", snap.Attached)
	fmt.Fprintf(w, "    sent start broadcast: %t\n", snap.SentStartBroadcast)
	fmt.Fprintf(w, "    waking gently: %t\n", snap.WakingGently)
	fmt.Fprintf(w, "    running for: %s\n", time.Since(snap.StartedAt).Round(time.Millisecond))
	return nil
}
