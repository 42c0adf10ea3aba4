package database

import (
	"context"
	"fmt"
	"math"
	"strconv"
)

// DefaultVolume is returned when no volume has been persisted.
const DefaultVolume = 1.0

// ValidateVolume reports whether v is a usable playback volume.
func ValidateVolume(v float64) error {
	if math.IsNaN(v) || v < 0 || v > 1 {
		return fmt.Errorf("volume %v out of range [0,1]", v)
	}
	return nil
}

// GetVolume returns the global playback volume, or DefaultVolume when none
// has been stored or the stored value is unreadable.
func GetVolume(ctx context.Context, store Store, ns Namespaces) (float64, error) {
	raw, ok, err := store.Get(ctx, ns.Volume, VolumeKey)
	if err != nil {
		return DefaultVolume, err
	}
	if !ok {
		return DefaultVolume, nil
	}
	v, err := strconv.ParseFloat(string(raw), 64)
	if err != nil || ValidateVolume(v) != nil {
		return DefaultVolume, nil
	}
	return v, nil
}

// SetVolume persists the global playback volume. Last write wins.
func SetVolume(ctx context.Context, store Store, ns Namespaces, v float64) error {
	if err := ValidateVolume(v); err != nil {
		return err
	}
	return store.Set(ctx, ns.Volume, VolumeKey, []byte(strconv.FormatFloat(v, 'f', -1, 64)))
}
