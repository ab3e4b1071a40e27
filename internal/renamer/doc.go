// Package renamer renders deterministic destination paths for matched media
// and resolves name collisions by suffixing.
package renamer
