// Command subflow runs the subtitle translation pipeline: it expands
// channel or video URLs into work items, drives them through the staged
// scheduler, and reports failures and run history.
package main
