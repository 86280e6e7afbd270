// Package util provides small building blocks used by the pool and its tools.
//
// The package contains:
//   - collector: A lock-free multi-producer collector that hands items back in
//     completion order. The pool uses it to accumulate concurrent connect results.
//   - stats: Sample statistics and a distribution rating, used to judge how evenly
//     bytes were spread over connections.
package util
