package classifier

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"jordanella.com/slash-go/internal/cv"
)

// Input size shared by the bundled models
const (
	DefaultInputW = 224
	DefaultInputH = 224
)

// StaminaSpec classifies the stamina gauge
func StaminaSpec() ModelSpec {
	return ModelSpec{
		Name:   "stamina",
		File:   "stamina_model.tflite",
		InputW: DefaultInputW,
		InputH: DefaultInputH,
		Labels: []string{"FULL", "LOW", "EMPTY"},
		Norm:   cv.NormUnit,
	}
}

// EnemySpec classifies the enemy on screen
func EnemySpec() ModelSpec {
	return ModelSpec{
		Name:   "enemy",
		File:   "enemy_model.tflite",
		InputW: DefaultInputW,
		InputH: DefaultInputH,
		Labels: []string{"NO_ENEMY", "WEAK_ENEMY", "STRONG_ENEMY", "BOSS"},
		Norm:   cv.NormSigned,
	}
}

// ItemSpec classifies a visible item
func ItemSpec() ModelSpec {
	return ModelSpec{
		Name:   "item",
		File:   "item_model.tflite",
		InputW: DefaultInputW,
		InputH: DefaultInputH,
		Labels: []string{"NO_ITEM", "HEALTH_POTION", "STAMINA_POTION", "TREASURE"},
		Norm:   cv.NormSigned,
	}
}

// Set holds the three independently loadable adapters
type Set struct {
	Stamina *Adapter
	Enemy   *Adapter
	Item    *Adapter
}

// NewSet builds a set from the given specs, all unloaded
func NewSet(stamina, enemy, item ModelSpec) *Set {
	return &Set{
		Stamina: NewAdapter(stamina),
		Enemy:   NewAdapter(enemy),
		Item:    NewAdapter(item),
	}
}

// NewDefaultSet builds a set from the bundled specs
func NewDefaultSet() *Set {
	return NewSet(StaminaSpec(), EnemySpec(), ItemSpec())
}

// Adapters returns the adapters in stamina, enemy, item order
func (s *Set) Adapters() []*Adapter {
	return []*Adapter{s.Stamina, s.Enemy, s.Item}
}

// ByName looks up an adapter by its spec name
func (s *Set) ByName(name string) (*Adapter, bool) {
	for _, a := range s.Adapters() {
		if a.Spec().Name == name {
			return a, true
		}
	}
	return nil, false
}

// LoadRunner installs an ExecEvaluator for every model whose file exists in
// dir. Missing files leave that adapter unloaded and are reported together.
func (s *Set) LoadRunner(dir, runner string, timeout time.Duration) error {
	var errs []error
	for _, a := range s.Adapters() {
		path := filepath.Join(dir, a.Spec().File)
		if _, err := os.Stat(path); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", a.Spec().Name, err))
			continue
		}
		eval, err := NewExecEvaluator(runner, path, timeout)
		if err != nil {
			return err
		}
		a.Load(eval)
	}
	return errors.Join(errs...)
}

// Unload unloads every adapter
func (s *Set) Unload() {
	for _, a := range s.Adapters() {
		a.Unload()
	}
}
