package sim_test

// Registers the effect classes configuration documents name.
import _ "github.com/opticsim/opticsim/sim/effects"
