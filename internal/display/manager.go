package display

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/SamiESK/insta-scrapper/internal/common"
)

// Assignment is the rendering slot an account maps to
type Assignment struct {
	DisplayID int // X display number, used as DISPLAY=:<id>
	VNCPort   int // x11vnc port exposing the display for inspection
}

// slot holds the processes backing one display slot. Each slot has its own
// lock so two accounts landing on the same slot cannot double-spawn, while
// different slots provision fully in parallel.
type slot struct {
	mu   sync.Mutex
	xvfb *exec.Cmd
	vnc  *exec.Cmd
}

// Manager assigns and lazily provisions a virtual display plus VNC endpoint
// per account. The account-to-slot mapping is a pure function of the account
// id, so the same account always lands on the same slot across runs.
//
// Two simultaneously running accounts can hash to the same slot; that
// collision is an accepted limitation - the pool size should be chosen so it
// stays rare. No conflict detection or slot queuing exists on purpose.
type Manager struct {
	config   common.DisplayConfig
	logger   arbor.ILogger
	slots    []*slot
	assigned map[int]int // accountID -> slot index, in-memory only
	mu       sync.Mutex  // guards assigned
}

// NewManager creates a display manager over a fixed slot pool
func NewManager(config common.DisplayConfig, logger arbor.ILogger) *Manager {
	slots := make([]*slot, config.PoolSize)
	for i := range slots {
		slots[i] = &slot{}
	}
	return &Manager{
		config:   config,
		logger:   logger,
		slots:    slots,
		assigned: make(map[int]int),
	}
}

// Assign returns the display and VNC port for an account. Pure and
// deterministic: calling it twice always yields the same pair.
func (m *Manager) Assign(accountID int) Assignment {
	idx := m.slotIndex(accountID)
	return Assignment{
		DisplayID: m.config.DisplayBase + idx,
		VNCPort:   m.config.VNCBasePort + idx,
	}
}

func (m *Manager) slotIndex(accountID int) int {
	if m.config.PoolSize <= 0 {
		return 0
	}
	idx := accountID % m.config.PoolSize
	if idx < 0 {
		idx += m.config.PoolSize
	}
	return idx
}

// EnsureRunning makes sure the Xvfb and x11vnc processes for the account's
// slot are alive, starting them when they are not. Idempotent: concurrent
// calls for the same slot serialize on the slot lock.
//
// A failed start is returned to the caller but should be treated as
// non-fatal - the run can still proceed headless against whatever display is
// reachable.
func (m *Manager) EnsureRunning(ctx context.Context, accountID int) (Assignment, error) {
	assignment := m.Assign(accountID)

	m.mu.Lock()
	idx := m.slotIndex(accountID)
	m.assigned[accountID] = idx
	m.mu.Unlock()

	if !m.config.Enabled {
		return assignment, nil
	}

	s := m.slots[idx]
	s.mu.Lock()
	defer s.mu.Unlock()

	if !processAlive(s.xvfb) {
		cmd := exec.Command("Xvfb",
			fmt.Sprintf(":%d", assignment.DisplayID),
			"-screen", "0", m.config.Resolution,
			"-nolisten", "tcp")
		if err := cmd.Start(); err != nil {
			m.logger.Warn().
				Int("account_id", accountID).
				Int("display", assignment.DisplayID).
				Err(err).
				Msg("Failed to start Xvfb - run will proceed without an isolated display")
			return assignment, fmt.Errorf("failed to start Xvfb on :%d: %w", assignment.DisplayID, err)
		}
		go cmd.Wait() // reap on exit
		s.xvfb = cmd

		if err := m.waitForDisplay(ctx, assignment.DisplayID); err != nil {
			m.logger.Warn().
				Int("display", assignment.DisplayID).
				Err(err).
				Msg("Xvfb did not become ready in time")
			return assignment, err
		}

		m.logger.Info().
			Int("account_id", accountID).
			Int("display", assignment.DisplayID).
			Msg("Virtual display started")
	}

	if !processAlive(s.vnc) {
		cmd := exec.Command("x11vnc",
			"-display", fmt.Sprintf(":%d", assignment.DisplayID),
			"-rfbport", fmt.Sprintf("%d", assignment.VNCPort),
			"-forever", "-shared", "-nopw", "-quiet")
		if err := cmd.Start(); err != nil {
			// The display itself is usable; a missing viewer is inspection
			// convenience only
			m.logger.Warn().
				Int("vnc_port", assignment.VNCPort).
				Err(err).
				Msg("Failed to start x11vnc - display is up but not remotely viewable")
			return assignment, nil
		}
		go cmd.Wait()
		s.vnc = cmd

		m.logger.Info().
			Int("account_id", accountID).
			Int("vnc_port", assignment.VNCPort).
			Msg("Remote viewer started")
	}

	return assignment, nil
}

// Release forgets the account's in-memory mapping. It deliberately never
// kills the slot processes: another account in the same slot bucket may
// still be using them.
func (m *Manager) Release(accountID int) {
	m.mu.Lock()
	delete(m.assigned, accountID)
	m.mu.Unlock()
}

// ActiveAssignments returns the number of accounts currently holding a slot
// mapping
func (m *Manager) ActiveAssignments() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.assigned)
}

// Shutdown terminates every process this manager spawned. Only called at
// application exit - never as part of releasing a single account.
func (m *Manager) Shutdown() {
	for i, s := range m.slots {
		s.mu.Lock()
		for _, cmd := range []*exec.Cmd{s.vnc, s.xvfb} {
			if processAlive(cmd) {
				if err := cmd.Process.Kill(); err != nil {
					m.logger.Warn().Int("slot", i).Err(err).Msg("Failed to kill display process")
				}
			}
		}
		s.xvfb = nil
		s.vnc = nil
		s.mu.Unlock()
	}
}

// waitForDisplay polls for the X server socket to appear
func (m *Manager) waitForDisplay(ctx context.Context, displayID int) error {
	socket := fmt.Sprintf("/tmp/.X11-unix/X%d", displayID)
	deadline := time.Now().Add(3 * time.Second)

	for time.Now().Before(deadline) {
		if _, err := os.Stat(socket); err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(100 * time.Millisecond):
		}
	}
	return fmt.Errorf("display :%d not ready after 3s", displayID)
}

// processAlive reports whether a started command is still running
func processAlive(cmd *exec.Cmd) bool {
	if cmd == nil || cmd.Process == nil {
		return false
	}
	return cmd.Process.Signal(syscall.Signal(0)) == nil
}
