// Package language normalizes translation target codes and matches subtitle
// track languages against them. BCP 47 parsing and display names come from
// golang.org/x/text.
package language
