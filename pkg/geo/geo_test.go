package geo

import (
	"math"
	"testing"

	"github.com/krish/fieldserve/internal/model"
)

func TestHaversineKm_SamePoint(t *testing.T) {
	loc := model.Location{Lat: 45.5019, Lng: -73.5674}
	got := HaversineKm(loc, loc)
	if got != 0 {
		t.Errorf("HaversineKm(same point) = %v, want 0", got)
	}
}

func TestHaversineKm_Symmetric(t *testing.T) {
	a := model.Location{Lat: 45.5019, Lng: -73.5674}
	b := model.Location{Lat: 45.4215, Lng: -75.6972}
	if HaversineKm(a, b) != HaversineKm(b, a) {
		t.Errorf("HaversineKm not symmetric: %v vs %v", HaversineKm(a, b), HaversineKm(b, a))
	}
}

func TestHaversineKm_KnownDistance(t *testing.T) {
	// Montreal to Ottawa (~165 km)
	montreal := model.Location{Lat: 45.5019, Lng: -73.5674}
	ottawa := model.Location{Lat: 45.4215, Lng: -75.6972}
	got := HaversineKm(montreal, ottawa)
	wantMin, wantMax := 155.0, 175.0
	if got < wantMin || got > wantMax {
		t.Errorf("HaversineKm(Montreal→Ottawa) = %.2f km, want between %.1f and %.1f", got, wantMin, wantMax)
	}
}

func TestWithinKm(t *testing.T) {
	a := model.Location{Lat: 45.50, Lng: -73.57}
	b := model.Location{Lat: 45.53, Lng: -73.57} // ~3.3 km north
	if !WithinKm(a, b, 5) {
		t.Errorf("WithinKm(3.3km, 5km radius) = false, want true")
	}
	if WithinKm(a, b, 2) {
		t.Errorf("WithinKm(3.3km, 2km radius) = true, want false")
	}
}

func TestHaversineM(t *testing.T) {
	a := model.Location{Lat: 0, Lng: 0}
	b := model.Location{Lat: 0.001, Lng: 0}
	km := HaversineKm(a, b)
	m := HaversineM(a, b)
	if math.Abs(m-km*1000) > 0.01 {
		t.Errorf("HaversineM = %v, want HaversineKm*1000 = %v", m, km*1000)
	}
}
