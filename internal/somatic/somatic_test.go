package somatic

import "testing"

func TestAddDefaultsSideToCenter(t *testing.T) {
	var m BodyMap
	m.Add(Marker{ID: "s1", PartID: "p1", Location: Location{Region: RegionChest}, Quality: "tightness", Intensity: 0.7})

	markers := m.Markers()
	if len(markers) != 1 {
		t.Fatalf("Markers() = %d, want 1", len(markers))
	}
	if markers[0].Location.Side != SideCenter {
		t.Fatalf("side = %q, want center", markers[0].Location.Side)
	}
}

func TestByPartAndByRegion(t *testing.T) {
	var m BodyMap
	m.Add(Marker{ID: "s1", PartID: "critic", Location: Location{Region: RegionChest}, Quality: "tightness", Intensity: 0.7})
	m.Add(Marker{ID: "s2", PartID: "critic", Location: Location{Region: RegionThroat}, Quality: "lump", Intensity: 0.4})
	m.Add(Marker{ID: "s3", PartID: "exile", Location: Location{Region: RegionChest, Side: SideLeft}, Quality: "ache", Intensity: 0.8})

	if got := m.ByPart("critic"); len(got) != 2 {
		t.Fatalf("ByPart(critic) = %d, want 2", len(got))
	}
	chest := m.ByRegion(RegionChest)
	if len(chest) != 2 {
		t.Fatalf("ByRegion(chest) = %d, want 2", len(chest))
	}
	if got := m.ByPart("ghost"); len(got) != 0 {
		t.Fatalf("ByPart(ghost) = %d, want 0", len(got))
	}
}

func TestRemovePart(t *testing.T) {
	var m BodyMap
	m.Add(Marker{ID: "s1", PartID: "critic", Location: Location{Region: RegionChest}})
	m.Add(Marker{ID: "s2", PartID: "exile", Location: Location{Region: RegionStomach}})

	m.RemovePart("critic")

	markers := m.Markers()
	if len(markers) != 1 || markers[0].PartID != "exile" {
		t.Fatalf("Markers() = %+v", markers)
	}
}
