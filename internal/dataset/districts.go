package dataset

import (
	"fmt"
	"os"

	"github.com/tidwall/gjson"

	"github.com/jengzang/geo-dashboard/internal/models"
	"github.com/jengzang/geo-dashboard/internal/spatial"
)

// ParseDistricts reads a district boundary file of the form
// {"level2s":[{"name","level2_id","coordinates":[polygon,...]}]} and returns
// one District per polygon, using each polygon's outer ring. A file without
// any usable polygon is invalid.
func ParseDistricts(data []byte) ([]models.District, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("%w: district file is not valid JSON", ErrInvalidData)
	}
	level2s := gjson.GetBytes(data, "level2s")
	if !level2s.IsArray() {
		return nil, fmt.Errorf("%w: district file has no level2s array", ErrInvalidData)
	}

	var districts []models.District
	level2s.ForEach(func(_, d gjson.Result) bool {
		name := d.Get("name").String()
		id := d.Get("level2_id").String()
		d.Get("coordinates").ForEach(func(_, polygon gjson.Result) bool {
			var ring [][2]float64
			polygon.Get("0").ForEach(func(_, pt gjson.Result) bool {
				xy := pt.Array()
				if len(xy) >= 2 {
					ring = append(ring, [2]float64{xy[0].Float(), xy[1].Float()})
				}
				return true
			})
			if len(ring) < 3 {
				return true
			}
			districts = append(districts, models.District{
				Name:    name,
				ID:      id,
				Polygon: spatial.PolygonFromRing(ring),
			})
			return true
		})
		return true
	})
	if len(districts) == 0 {
		return nil, fmt.Errorf("%w: district file has no polygons", ErrInvalidData)
	}
	return districts, nil
}

// LoadDistricts reads and parses a district boundary file.
func LoadDistricts(path string) ([]models.District, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read district file: %w", err)
	}
	return ParseDistricts(data)
}

// DistrictInfos lists every district once, in file order, with its polygon count.
func DistrictInfos(districts []models.District) []models.DistrictInfo {
	var infos []models.DistrictInfo
	pos := make(map[string]int)
	for _, d := range districts {
		key := d.ID + "\x00" + d.Name
		if i, ok := pos[key]; ok {
			infos[i].PolygonCount++
			continue
		}
		pos[key] = len(infos)
		infos = append(infos, models.DistrictInfo{ID: d.ID, Name: d.Name, PolygonCount: 1})
	}
	return infos
}
