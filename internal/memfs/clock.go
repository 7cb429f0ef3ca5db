package memfs

import (
	"crypto/rand"
	"encoding/binary"
	"io"
	"time"
)

// lcg is a linear congruential generator. It exists to make tests
// reproducible and is not cryptographically secure.
type lcg struct {
	state uint64
}

func (g *lcg) fill(buf []byte) {
	for i := range buf {
		g.state = g.state*1664525 + 1013904223
		buf[i] = byte(g.state >> 24)
	}
}

// SetSeed makes Random deterministic from seed. Each call restarts the
// sequence; a nil seed switches back to the real entropy source.
func (vfs *FS) SetSeed(seed *uint64) {
	vfs.mu.Lock()
	defer vfs.mu.Unlock()
	vfs.setSeedLocked(seed)
}

func (vfs *FS) setSeedLocked(seed *uint64) {
	if seed == nil {
		vfs.rng = nil
		return
	}
	vfs.rng = &lcg{state: *seed}
}

// SetTime fixes the instant returned by TimeNow. A nil time restores the
// real clock.
func (vfs *FS) SetTime(t *time.Time) {
	vfs.mu.Lock()
	defer vfs.mu.Unlock()
	if t == nil {
		vfs.fixedTime = nil
		return
	}
	fixed := *t
	vfs.fixedTime = &fixed
}

// DisableSleep makes Sleep a no-op.
func (vfs *FS) DisableSleep() {
	vfs.mu.Lock()
	defer vfs.mu.Unlock()
	vfs.sleepEnabled = false
}

// TimeNow returns the fixed instant if one is configured, else the real clock.
func (vfs *FS) TimeNow() time.Time {
	vfs.mu.RLock()
	defer vfs.mu.RUnlock()
	return vfs.timeNowLocked()
}

func (vfs *FS) timeNowLocked() time.Time {
	if vfs.fixedTime != nil {
		return *vfs.fixedTime
	}
	return time.Now()
}

// Random fills buf from the seeded generator when a seed is set, otherwise
// from crypto/rand.
func (vfs *FS) Random(buf []byte) error {
	// The generator advances, so even reads take the writer lock.
	vfs.mu.Lock()
	defer vfs.mu.Unlock()
	if vfs.rng != nil {
		vfs.rng.fill(buf)
		return nil
	}
	_, err := rand.Read(buf)
	return err
}

func (vfs *FS) RandomUint8() (uint8, error) {
	var buf [1]byte
	if err := vfs.Random(buf[:]); err != nil {
		return 0, err
	}
	return buf[0], nil
}

func (vfs *FS) RandomUint32() (uint32, error) {
	var buf [4]byte
	if err := vfs.Random(buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(buf[:]), nil
}

func (vfs *FS) RandomUint64() (uint64, error) {
	var buf [8]byte
	if err := vfs.Random(buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(buf[:]), nil
}

// RandReader returns an io.Reader over Random.
func (vfs *FS) RandReader() io.Reader {
	return randReader{vfs: vfs}
}

type randReader struct {
	vfs *FS
}

func (r randReader) Read(p []byte) (int, error) {
	if err := r.vfs.Random(p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Sleep pauses for d unless sleeping was disabled.
func (vfs *FS) Sleep(d time.Duration) {
	vfs.mu.RLock()
	enabled := vfs.sleepEnabled
	vfs.mu.RUnlock()
	if enabled {
		time.Sleep(d)
	}
}
