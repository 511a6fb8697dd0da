package tuning

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Tuning struct {
	ChunkSize           int `yaml:"chunk_size"`
	RenderDistance      int `yaml:"render_distance"`
	UnloadDistance      int `yaml:"unload_distance"`
	ActiveRadius        int `yaml:"active_radius"`
	TickRateHz          int `yaml:"tick_rate_hz"`
	Workers             int `yaml:"workers"`
	ChunkWorkers        int `yaml:"chunk_workers"`
	MaxGenPerUpdate     int `yaml:"max_gen_per_update"`
	SnapshotEveryFrames int `yaml:"snapshot_every_frames"`

	Environment Environment `yaml:"environment"`
	WorldGen    WorldGen    `yaml:"worldgen"`
}

type Environment struct {
	DayFrames      int     `yaml:"day_frames"`
	StartTimeOfDay float64 `yaml:"start_time_of_day"`
	GrowthRate     float64 `yaml:"growth_rate"`

	RainRows            int     `yaml:"rain_rows"`
	RainChance          float64 `yaml:"rain_chance"`
	WeatherPeriodFrames int     `yaml:"weather_period_frames"`
	RainPermille        int     `yaml:"rain_permille"`

	GrassGrowthChance float64 `yaml:"grass_growth_chance"`
	GrassDecayChance  float64 `yaml:"grass_decay_chance"`
	GrassSpreadChance float64 `yaml:"grass_spread_chance"`
	NewGrassGrowth    int     `yaml:"new_grass_growth"`
}

type WorldGen struct {
	SeaLevel          int  `yaml:"sea_level"`
	BaseHeight        int  `yaml:"base_height"`
	HeightAmplitude   int  `yaml:"height_amplitude"`
	TerrainScale      int  `yaml:"terrain_scale"`
	BiomeRegionSize   int  `yaml:"biome_region_size"`
	CaveScalePermille int  `yaml:"cave_scale_permille"`
	OreScalePermille  int  `yaml:"ore_scale_permille"`
	Vegetation        bool `yaml:"vegetation"`
	InitialGrowth     int  `yaml:"initial_growth"`
}

func Defaults() Tuning {
	return Tuning{
		ChunkSize:           256,
		RenderDistance:      4,
		ActiveRadius:        2,
		TickRateHz:          60,
		MaxGenPerUpdate:     2,
		SnapshotEveryFrames: 36000,
		Environment: Environment{
			DayFrames:           72000,
			StartTimeOfDay:      0.25,
			GrowthRate:          1,
			RainRows:            4,
			RainChance:          0.002,
			WeatherPeriodFrames: 3600,
			RainPermille:        300,
			GrassGrowthChance:   0.05,
			GrassDecayChance:    0.02,
			GrassSpreadChance:   0.01,
			NewGrassGrowth:      32,
		},
		WorldGen: WorldGen{
			SeaLevel:          64,
			BaseHeight:        48,
			HeightAmplitude:   40,
			TerrainScale:      64,
			BiomeRegionSize:   512,
			CaveScalePermille: 1000,
			OreScalePermille:  1000,
			Vegetation:        true,
			InitialGrowth:     128,
		},
	}
}

// Load reads a tuning file. Keys missing from the file keep their defaults.
func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

func (t Tuning) Validate() error {
	if t.ChunkSize <= 0 {
		return fmt.Errorf("chunk_size must be > 0, got %d", t.ChunkSize)
	}
	if t.RenderDistance < 0 {
		return fmt.Errorf("render_distance must be >= 0, got %d", t.RenderDistance)
	}
	if t.UnloadDistance != 0 && t.UnloadDistance < t.RenderDistance {
		return fmt.Errorf("unload_distance must be 0 or >= render_distance, got %d", t.UnloadDistance)
	}
	if t.ActiveRadius < 0 {
		return fmt.Errorf("active_radius must be >= 0, got %d", t.ActiveRadius)
	}
	if t.TickRateHz <= 0 {
		return fmt.Errorf("tick_rate_hz must be > 0, got %d", t.TickRateHz)
	}
	if t.Workers < 0 || t.ChunkWorkers < 0 || t.MaxGenPerUpdate < 0 {
		return fmt.Errorf("workers, chunk_workers and max_gen_per_update must be >= 0")
	}
	e := t.Environment
	if e.DayFrames <= 0 {
		return fmt.Errorf("environment.day_frames must be > 0, got %d", e.DayFrames)
	}
	if e.StartTimeOfDay < 0 || e.StartTimeOfDay >= 1 {
		return fmt.Errorf("environment.start_time_of_day must be in [0,1), got %v", e.StartTimeOfDay)
	}
	for name, p := range map[string]float64{
		"rain_chance":         e.RainChance,
		"grass_growth_chance": e.GrassGrowthChance,
		"grass_decay_chance":  e.GrassDecayChance,
		"grass_spread_chance": e.GrassSpreadChance,
	} {
		if p < 0 || p > 1 {
			return fmt.Errorf("environment.%s must be in [0,1], got %v", name, p)
		}
	}
	if e.GrowthRate < 0 {
		return fmt.Errorf("environment.growth_rate must be >= 0, got %v", e.GrowthRate)
	}
	if e.RainPermille < 0 || e.RainPermille > 1000 {
		return fmt.Errorf("environment.rain_permille must be in [0,1000], got %d", e.RainPermille)
	}
	if e.NewGrassGrowth < 0 || e.NewGrassGrowth > 255 {
		return fmt.Errorf("environment.new_grass_growth must be in [0,255], got %d", e.NewGrassGrowth)
	}
	g := t.WorldGen
	if g.TerrainScale <= 0 || g.BiomeRegionSize <= 0 {
		return fmt.Errorf("worldgen.terrain_scale and worldgen.biome_region_size must be > 0")
	}
	if g.InitialGrowth < 0 || g.InitialGrowth > 255 {
		return fmt.Errorf("worldgen.initial_growth must be in [0,255], got %d", g.InitialGrowth)
	}
	return nil
}
