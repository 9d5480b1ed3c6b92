package models

// ProductAttribute is a raw, free-form catalog attribute.
type ProductAttribute struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	ValueName string `json:"value_name"`
}

// Product is the slice of a catalog product the insights pipeline needs.
type Product struct {
	Title       string             `json:"title" binding:"required"`
	Price       float64            `json:"price"`
	Description string             `json:"description,omitempty"`
	Attributes  []ProductAttribute `json:"attributes,omitempty"`
}

// AttributeKey is one entry of the fixed attribute vocabulary.
type AttributeKey string

const (
	AttributeBattery   AttributeKey = "battery"
	AttributeCamera    AttributeKey = "camera"
	AttributeRAM       AttributeKey = "ram"
	AttributeStorage   AttributeKey = "storage"
	AttributeProcessor AttributeKey = "processor"
	AttributeScreen    AttributeKey = "screen"
)

// AttributeKeys lists the vocabulary in prompt order.
var AttributeKeys = []AttributeKey{
	AttributeBattery,
	AttributeCamera,
	AttributeRAM,
	AttributeStorage,
	AttributeProcessor,
	AttributeScreen,
}

// Valid reports whether k belongs to the vocabulary.
func (k AttributeKey) Valid() bool {
	for _, known := range AttributeKeys {
		if k == known {
			return true
		}
	}
	return false
}

// Label is the human-readable name used in prompts.
func (k AttributeKey) Label() string {
	switch k {
	case AttributeBattery:
		return "Battery"
	case AttributeCamera:
		return "Camera"
	case AttributeRAM:
		return "RAM"
	case AttributeStorage:
		return "Storage"
	case AttributeProcessor:
		return "Processor"
	case AttributeScreen:
		return "Screen"
	}
	return string(k)
}

// InsightsInput is built per request and treated as immutable.
type InsightsInput struct {
	Title       string
	Price       float64
	Description string
	Attributes  map[AttributeKey]string
}
