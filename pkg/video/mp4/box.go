package mp4

import (
	"errors"
	"fmt"
	"math"

	"ipcamconv/pkg/video/mp4/bitio"
)

// BoxHeaderSize is the size of a compact box header.
const BoxHeaderSize = 8

// ErrBoxTooLarge box size does not fit in a compact header.
var ErrBoxTooLarge = errors.New("box too large")

// BoxType is mpeg box type.
type BoxType [4]byte

func (t BoxType) String() string {
	return string(t[:])
}

// ImmutableBox is common interface of box.
type ImmutableBox interface {
	// Type returns the BoxType.
	Type() BoxType

	// Size returns the marshaled size of the box body in bytes.
	// The size must be known before marshaling
	// since the box header contains the size.
	Size() int

	// Marshal box body to writer.
	Marshal(w *bitio.Writer) error
}

// Boxes is a box with its children.
type Boxes struct {
	Box      ImmutableBox
	Children []Boxes
}

// Size returns the total size of the box including header and children.
func (b *Boxes) Size() int {
	total := BoxHeaderSize + b.Box.Size()
	for _, child := range b.Children {
		total += child.Size()
	}
	return total
}

// Marshal box including children.
func (b *Boxes) Marshal(w *bitio.Writer) error {
	if err := writeBoxHeader(w, b.Size(), b.Box.Type()); err != nil {
		return err
	}
	if err := b.Box.Marshal(w); err != nil {
		return fmt.Errorf("%v: %w", b.Box.Type(), err)
	}
	for _, child := range b.Children {
		if err := child.Marshal(w); err != nil {
			return err
		}
	}
	return w.TryError
}

func writeBoxHeader(w *bitio.Writer, size int, typ BoxType) error {
	if uint64(size) > math.MaxUint32 {
		return fmt.Errorf("%v: %w: %d", typ, ErrBoxTooLarge, size)
	}
	w.TryWriteUint32(uint32(size))
	w.TryWrite(typ[:])
	return w.TryError
}

// WriteSingleBox writes a box without children and returns its total size.
func WriteSingleBox(w *bitio.Writer, b ImmutableBox) (int, error) {
	box := Boxes{Box: b}
	if err := box.Marshal(w); err != nil {
		return 0, err
	}
	return box.Size(), nil
}
