// Package harness runs conformance scenarios against the feature cache.
//
// A scenario drives a fresh store, a resolver, and a deterministic spy
// engine through a sequence of steps, records a trace of what happened,
// and checks assertions against the trace and the final store contents.
//
// # Scenario Format
//
// Scenarios are YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	known: [glcm/Contrast]          # columns created when the store opens
//	engine:
//	  values: { glcm_Contrast: 2.5 } # fixed engine results by result key
//	  omit: [glcm_Idm]               # result keys the engine never returns
//	steps:
//	  - op: write
//	    key: { patient_id: AA-00, nodule_id: 0, annotation_id: 0, num_levels: 256 }
//	    features: [glcm/Contrast]
//	    value: 1.5
//	  - op: resolve
//	    key: { patient_id: AA-00, nodule_id: 0, annotation_id: 0, num_levels: 256 }
//	    features: [glcm/Contrast, firstorder/Energy]
//	    engine: fail                 # ok (default) or fail
//	    expect:
//	      outcome: error
//	      error: extraction/ENGINE
//	assertions:
//	  - type: trace_count
//	    event: engine
//	    count: 1
//	  - type: final_state
//	    key: { ... }
//	    feature: glcm/Contrast
//	    value: 1.5
//	  - type: stats
//	    stats: { requests: 1, hits: 1, misses: 0, computations: 1 }
//
// # Step Operations
//
//   - write: stores value for the single feature under key
//   - read: reads every feature under key without computing
//   - resolve: resolves every feature under key, computing misses through
//     the spy engine
//
// Every step also records an event in the trace. Each engine call made
// while resolving records an "engine" event ahead of its resolve event.
//
// # Assertion Types
//
//   - trace_count: an event type appears exactly N times
//   - trace_order: event types appear in the given order
//   - final_state: a stored value equals value, or is absent
//   - stats: the resolver counters after the last step
//
// # Deterministic Testing
//
// The spy engine returns fixed values (or the length of the result key),
// noise is seeded from the condition digest, and run ids come from
// testutil.SequentialTokens, so traces are identical across runs and can be
// compared against golden files.
package harness
