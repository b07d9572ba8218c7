package mapview

// ViewState is the initial camera of the map.
type ViewState struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Zoom      float64 `json:"zoom"`
	Pitch     float64 `json:"pitch"`
	Bearing   float64 `json:"bearing"`
}

// Tooltip is rendered by the page for picked objects.
type Tooltip struct {
	HTML  string            `json:"html"`
	Style map[string]string `json:"style"`
}

// Deck is a complete deck.gl JSON description.
type Deck struct {
	InitialViewState ViewState `json:"initialViewState"`
	MapStyle         string    `json:"mapStyle"`
	Layers           []Layer   `json:"layers"`
	Tooltip          Tooltip   `json:"tooltip"`
}

// HCMCViewState is centred on Ho Chi Minh City.
var HCMCViewState = ViewState{
	Latitude:  10.7756587,
	Longitude: 106.7004238,
	Zoom:      10,
}

// MapStyle is a token-free basemap.
const MapStyle = "https://basemaps.cartocdn.com/gl/positron-gl-style/style.json"

// NewDeck composes the layers with the default view and tooltip.
func NewDeck(layers ...Layer) Deck {
	if layers == nil {
		layers = []Layer{}
	}
	return Deck{
		InitialViewState: HCMCViewState,
		MapStyle:         MapStyle,
		Layers:           layers,
		Tooltip: Tooltip{
			HTML: "<b>{name}</b>",
			Style: map[string]string{
				"backgroundColor": "white",
				"color":           "black",
				"font-family":     `"Helvetica Neue", Arial`,
				"z-index":         "10000",
			},
		},
	}
}
