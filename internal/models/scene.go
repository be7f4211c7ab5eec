package models

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Scene is a declarative layout mapping named sources to normalized placement
// rectangles. Scenes are loaded from disk and immutable at runtime.
type Scene struct {
	ID     string      `json:"id"`
	Name   string      `json:"name,omitempty"`
	Width  int         `json:"width"`
	Height int         `json:"height"`
	Slots  []SceneSlot `json:"slots"`
}

// SceneSlot places one source within a scene. Placement values are normalized
// to the scene's output resolution: x, y, w, h in [0,1].
type SceneSlot struct {
	Source string    `json:"source"`
	X      float64   `json:"x"`
	Y      float64   `json:"y"`
	W      float64   `json:"w"`
	H      float64   `json:"h"`
	Z      int       `json:"z"`
	Alpha  float64   `json:"alpha"`
	Crop   *SlotCrop `json:"crop,omitempty"`
}

// SlotCrop trims pixels from the decoded source before scaling.
type SlotCrop struct {
	Left   int `json:"left"`
	Top    int `json:"top"`
	Right  int `json:"right"`
	Bottom int `json:"bottom"`
}

// UnmarshalJSON defaults alpha to fully opaque when the field is absent, so
// scene files only need to mention alpha for translucent slots.
func (s *SceneSlot) UnmarshalJSON(data []byte) error {
	type slotAlias SceneSlot
	aux := struct {
		Alpha *float64 `json:"alpha"`
		*slotAlias
	}{slotAlias: (*slotAlias)(s)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if aux.Alpha == nil {
		s.Alpha = 1.0
	} else {
		s.Alpha = *aux.Alpha
	}
	return nil
}

// Validate checks the scene definition against the schema.
func (s *Scene) Validate() error {
	if s.ID == "" {
		return ErrSceneIDRequired
	}
	if s.Width < 1 || s.Height < 1 {
		return fmt.Errorf("scene %s: %w", s.ID, ErrSceneResolution)
	}
	if len(s.Slots) == 0 {
		return fmt.Errorf("scene %s: %w", s.ID, ErrSceneNoSlots)
	}
	for i, slot := range s.Slots {
		if slot.Source == "" {
			return fmt.Errorf("scene %s slot %d: %w", s.ID, i, ErrSlotSourceRequired)
		}
		if slot.X < 0 || slot.X > 1 || slot.Y < 0 || slot.Y > 1 ||
			slot.W <= 0 || slot.W > 1 || slot.H <= 0 || slot.H > 1 {
			return fmt.Errorf("scene %s slot %d (%s): %w", s.ID, i, slot.Source, ErrSlotOutOfRange)
		}
		if slot.Alpha < 0 || slot.Alpha > 1 {
			return fmt.Errorf("scene %s slot %d (%s): %w", s.ID, i, slot.Source, ErrSlotAlphaRange)
		}
	}
	return nil
}

// Sources returns the unique source ids referenced by the scene, sorted for
// stable comparison.
func (s *Scene) Sources() []string {
	seen := make(map[string]bool, len(s.Slots))
	out := make([]string, 0, len(s.Slots))
	for _, slot := range s.Slots {
		if !seen[slot.Source] {
			seen[slot.Source] = true
			out = append(out, slot.Source)
		}
	}
	sort.Strings(out)
	return out
}

// Clone returns a deep copy so callers cannot mutate the stored scene.
func (s *Scene) Clone() *Scene {
	out := *s
	out.Slots = make([]SceneSlot, len(s.Slots))
	copy(out.Slots, s.Slots)
	for i, slot := range s.Slots {
		if slot.Crop != nil {
			crop := *slot.Crop
			out.Slots[i].Crop = &crop
		}
	}
	return &out
}
