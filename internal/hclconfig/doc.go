// Package hclconfig reads and writes process configurations in HCL.
//
// A configuration file is a list of statements executed top to bottom:
// attributes and blocks interleave in source order. Declarations add
// modules, parameter sets and sequences to the process; `load` imports other
// files by reference; `set`, `declare`, `append`, `prune`, `edit`, `remove`
// and `clone` mutate what is already there.
//
//	process = "ANA"
//	load    = ["reco.hcl"]
//
//	analyzer "TopHitFitAnalyzer" "hitFit" {
//	  src     = tag("selectedJets")
//	  maxChi2 = 50.5
//	  nJets   = uint32(4)
//	}
//
//	set "muonMatch" {
//	  maxDeltaR = 0.3
//	}
//
//	path "p" {
//	  modules = !hltFilter * reco * hitFit
//	}
//
// Parameter kinds come from literals (whole numbers are int32, fractional
// numbers double) or from the kind functions int32, uint32, int64, uint64,
// double and tag. untracked() marks a value untracked. Dump writes a process
// back in the same language so that loading the dump reproduces it.
package hclconfig
