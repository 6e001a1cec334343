// Package wordlist generates human-typeable passphrases by drawing
// three random words from a small built-in list, the same scheme
// magic-wormhole and croc use for their rendezvous codes.
package wordlist

import (
	"strings"

	"lukechampine.com/frand"
)

// words is intentionally small: the passphrase's job is to be easy to
// read aloud over a voice call, not to carry entropy on its own (the
// room identifier plus the out-of-band channel it was shared over
// provide that).
var words = []string{
	"anchor", "basalt", "cobalt", "dapper", "ember", "falcon", "glider",
	"harbor", "ignite", "jigsaw", "kelvin", "lumber", "meadow", "nectar",
	"oxygen", "pepper", "quartz", "raptor", "sierra", "timber", "umbrel",
	"velvet", "willow", "xenon", "yonder", "zephyr", "amber", "bramble",
	"cactus", "dinghy", "ecbolt", "fathom", "granite", "hazard", "indigo",
	"juniper", "kimono", "lagoon", "magnet", "needle",
}

// Generate returns a fresh three-word, hyphen-joined passphrase, e.g.
// "ember-quartz-indigo".
func Generate() string {
	chosen := make([]string, 3)
	for i := range chosen {
		chosen[i] = words[frand.Intn(len(words))]
	}
	return strings.Join(chosen, "-")
}
