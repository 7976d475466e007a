// Package testsupport provides helpers shared by package tests, chiefly a
// config builder seeded with per-test temp directories.
package testsupport
