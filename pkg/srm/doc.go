// Package srm implements sample-ratio-mismatch detection and the supporting
// statistics used to sanity-check experiment traffic splits.
//
// The tester is a pure analysis consumer: it takes observed per-variant
// assignment counts and the expected allocation fractions, runs a chi-square
// goodness-of-fit test, and reports whether the observed split deviates
// improbably from the configured one. It holds no state and depends only on
// the variant vocabulary.
//
// The package also provides a two-proportion z-test and a sample-size
// calculator (Cohen's h) for experiment planning. The chi-square survival
// function and the normal quantile are implemented directly; the engine
// deliberately carries no numerical dependency for three textbook formulas.
package srm
