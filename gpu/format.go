package gpu

import "fmt"

// PixelType is the storage type of one texel channel.
type PixelType int

const (
	Byte  PixelType = iota // 8-bit unsigned normalized
	Half                   // 16-bit float
	Float                  // 32-bit float
)

// Size returns the channel size in bytes.
func (t PixelType) Size() int {
	switch t {
	case Half:
		return 2
	case Float:
		return 4
	default:
		return 1
	}
}

// Format describes a texture's channel layout.
type Format struct {
	Channels int
	Type     PixelType
}

// Formats used by the simulation fields.
var (
	RGBA16F = Format{Channels: 4, Type: Half}
	RG16F   = Format{Channels: 2, Type: Half}
	R16F    = Format{Channels: 1, Type: Half}
	RGBA32F = Format{Channels: 4, Type: Float}
	RG32F   = Format{Channels: 2, Type: Float}
	R32F    = Format{Channels: 1, Type: Float}
	RGBA8   = Format{Channels: 4, Type: Byte}
)

// ProbeOrder is the deterministic order in which render-target formats are
// tested. It always ends in RGBA8, the minimum tier.
var ProbeOrder = []Format{RGBA16F, RG16F, R16F, RGBA32F, RG32F, R32F, RGBA8}

// BytesPerPixel returns the storage size of one texel.
func (f Format) BytesPerPixel() int {
	return f.Channels * f.Type.Size()
}

// IsFloat reports whether the format stores half or full floats.
func (f Format) IsFloat() bool {
	return f.Type == Half || f.Type == Float
}

func (f Format) String() string {
	names := [...]string{"", "R", "RG", "RGB", "RGBA"}
	ch := "?"
	if f.Channels > 0 && f.Channels < len(names) {
		ch = names[f.Channels]
	}
	switch f.Type {
	case Half:
		return ch + "16F"
	case Float:
		return ch + "32F"
	case Byte:
		return ch + "8"
	}
	return fmt.Sprintf("%s?%d", ch, f.Type)
}

// Filter is a texture sampling filter.
type Filter int

const (
	Nearest Filter = iota
	Linear
)

func (f Filter) String() string {
	if f == Linear {
		return "linear"
	}
	return "nearest"
}

// BlendFactor is a source or destination blend factor. The equation is always add.
type BlendFactor int

const (
	Zero BlendFactor = iota
	One
	SrcAlpha
	OneMinusSrcAlpha
)
