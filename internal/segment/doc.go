// Package segment cuts a normalized audio stream into ordered chunks on
// natural pause boundaries, keeping every chunk within the provider's
// duration ceiling while covering the source without gaps.
package segment
