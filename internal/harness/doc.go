// Package harness runs YAML notification scenarios.
//
// A scenario declares an object schema, seed rows, a set of subscribed
// collections and a list of steps (writes on the observing connection,
// writes from a second connection, cancelled writes, refreshes, and token
// operations). Run replays it against a fresh in-memory database and
// returns the trace of steps and delivered notifications, which
// RunWithGolden compares against testdata/golden.
//
// Scenario format:
//
//	name: adults_sorted
//	schema: people.cue
//	seed:
//	  - put: Person
//	    row: {id: p1, name: Ann, age: 30}
//	subscriptions:
//	  - name: adults
//	    objects: Person
//	    where: [{keypath: age, op: ">=", value: 18}]
//	    sort: [{keypath: age}]
//	steps:
//	  - write:
//	      - put: Person
//	        row: {id: p2, name: Bob, age: 20}
//	assertions:
//	  - type: changes
//	    subscription: adults
//	    step: 1
//	    insertions: [0]
//
// All connections are unbound, so callbacks run on the goroutine calling
// Run and the trace is deterministic.
package harness
