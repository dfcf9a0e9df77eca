package sim

// Configuration keys the engine itself reads or derives.
const (
	KeyPixelScale    = "!INST.pixel_scale"         // arcsec per pixel, required
	KeyTelescopeArea = "!TEL.area"                 // m2, derived from the surfaces table
	KeyEtendue       = "!TEL.etendue"              // m2 arcsec2, derived
	KeyWaveMin       = "!SIM.spectral.wave_min"    // um
	KeyWaveMax       = "!SIM.spectral.wave_max"    // um
	KeyChunkSize     = "!SIM.computing.chunk_size" // max FOV side in pixels
	KeyRandomSeed    = "!SIM.random.seed"
	KeyFilterName    = "!OBS.filter_name"
	KeyModes         = "!OBS.modes"
	KeyDIT           = "!OBS.dit" // s
	KeyNDIT          = "!OBS.ndit"
)

// defaultChunkSize applies when KeyChunkSize is not configured.
const defaultChunkSize = 2048
