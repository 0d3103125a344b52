package dag

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/vsumner/swarms-go/agent"
)

// fragment is one parent's contribution to a downstream node's input.
type fragment struct {
	src  int
	text string
}

// runState is shared by every node execution within one ExecuteWorkflow
// call.
type runState struct {
	mu       sync.Mutex
	results  map[string]NodeResult
	edgeDone map[[2]int]bool
	inputs   map[int][]fragment
	wg       sync.WaitGroup
}

// ExecuteAgent runs a single registered agent outside of any graph
// traversal.
func (w *Workflow) ExecuteAgent(ctx context.Context, name, input string) (string, error) {
	w.mu.RLock()
	a, ok := w.agents[name]
	w.mu.RUnlock()
	if !ok {
		return "", &AgentNotFoundError{Name: name}
	}
	return a.Run(ctx, input)
}

// ExecuteWorkflow runs the graph from startAgent with the given input and
// returns every reached node's result keyed by agent name.
//
// Per run: each node executes at most once (results are cached); a node
// starts only after every incoming edge from reachable parents has been
// processed; an edge whose condition rejects is still processed but
// contributes no input fragment; a node none of whose edges contributed is
// skipped, as is everything downstream of a failed node.
func (w *Workflow) ExecuteWorkflow(ctx context.Context, startAgent, input string) (map[string]NodeResult, error) {
	w.mu.RLock()
	startIdx, ok := w.nameToNode[startAgent]
	w.mu.RUnlock()
	if !ok {
		return nil, &AgentNotFoundError{Name: fmt.Sprintf("start agent '%s' not found", startAgent)}
	}

	w.resetLastResults()

	st := &runState{
		results:  make(map[string]NodeResult),
		edgeDone: make(map[[2]int]bool),
		inputs:   make(map[int][]fragment),
	}

	// Edges from parents this run cannot reach never fire; count them as
	// processed so they do not hold back their targets.
	w.mu.RLock()
	reachable := map[int]bool{startIdx: true}
	for changed := true; changed; {
		changed = false
		for _, e := range w.edges {
			changed = changed || (reachable[e.from] && !reachable[e.to])
			reachable[e.to] = reachable[e.to] || reachable[e.from]
		}
	}
	for _, e := range w.edges {
		st.edgeDone[[2]int{e.from, e.to}] = !reachable[e.from]
	}
	w.mu.RUnlock()

	w.executeNode(ctx, startIdx, input, st)
	st.wg.Wait()

	return st.results, nil
}

func (w *Workflow) resetLastResults() {
	w.mu.RLock()
	defer w.mu.RUnlock()
	for _, n := range w.nodes {
		if n == nil {
			continue
		}
		n.mu.Lock()
		n.lastResult = nil
		n.mu.Unlock()
	}
}

// executeNode runs one node and dispatches its children. Safe to call
// twice for the same node within a run: the second call returns the cached
// result.
func (w *Workflow) executeNode(ctx context.Context, idx int, input string, st *runState) NodeResult {
	w.mu.RLock()
	n := w.nodes[idx]
	a := w.agents[n.name]
	timeout := w.timeout
	w.mu.RUnlock()

	st.mu.Lock()
	if cached, ok := st.results[n.name]; ok {
		st.mu.Unlock()
		return cached
	}
	st.mu.Unlock()

	result := w.runWithTimeout(ctx, a, n.name, input, timeout)

	st.mu.Lock()
	if cached, ok := st.results[n.name]; ok {
		// Another dispatch won the race; keep the first result.
		st.mu.Unlock()
		return cached
	}
	st.results[n.name] = result
	st.mu.Unlock()

	n.mu.Lock()
	n.lastResult = &result
	n.mu.Unlock()

	if result.Err != nil {
		w.logger.Error("agent execution failed", "agent", n.name, "error", result.Err)
		return result
	}

	w.mu.RLock()
	outgoing := make([]edge, 0)
	for _, e := range w.edges {
		if e.from == idx {
			outgoing = append(outgoing, e)
		}
	}
	w.mu.RUnlock()

	for _, e := range outgoing {
		e := e
		st.wg.Add(1)
		go func() {
			defer st.wg.Done()
			w.processEdge(ctx, e, result.Output, st)
		}()
	}

	return result
}

// processEdge marks e processed, records its contribution when the
// condition passes, and dispatches the target once every incoming edge has
// been processed and at least one contributed.
func (w *Workflow) processEdge(ctx context.Context, e edge, output string, st *runState) {
	pass := e.flow.Condition == nil || e.flow.Condition(output)

	next := output
	if pass && e.flow.Transform != nil {
		next = e.flow.Transform(output)
	}

	w.mu.RLock()
	var incoming [][2]int
	for _, in := range w.edges {
		if in.to == e.to {
			incoming = append(incoming, [2]int{in.from, in.to})
		}
	}
	target := w.nodes[e.to]
	w.mu.RUnlock()

	st.mu.Lock()
	st.edgeDone[[2]int{e.from, e.to}] = true
	if pass {
		st.inputs[e.to] = append(st.inputs[e.to], fragment{src: e.from, text: next})
	}

	allProcessed := true
	for _, key := range incoming {
		if !st.edgeDone[key] {
			allProcessed = false
			break
		}
	}

	dispatch := false
	var aggregated string
	if allProcessed && len(st.inputs[e.to]) > 0 {
		if _, done := st.results[target.name]; !done {
			var b strings.Builder
			for _, frag := range st.inputs[e.to] {
				w.mu.RLock()
				srcName := w.nodes[frag.src].name
				w.mu.RUnlock()
				fmt.Fprintf(&b, "[From %s] %s\n", srcName, frag.text)
			}
			aggregated = b.String()
			dispatch = true
		}
	}
	st.mu.Unlock()

	if dispatch {
		w.executeNode(ctx, e.to, aggregated, st)
	}
}

// runWithTimeout executes the agent, bounding it by the workflow timeout.
func (w *Workflow) runWithTimeout(ctx context.Context, a agent.Agent, name, input string, timeout time.Duration) NodeResult {
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		output string
		err    error
	}
	ch := make(chan outcome, 1)
	go func() {
		output, err := a.Run(runCtx, input)
		ch <- outcome{output: output, err: err}
	}()

	select {
	case <-runCtx.Done():
		if ctx.Err() != nil {
			return NodeResult{Err: ctx.Err()}
		}
		return NodeResult{Err: &TimeoutError{Agent: name}}
	case out := <-ch:
		if out.err != nil {
			return NodeResult{Err: out.err}
		}
		return NodeResult{Output: out.output}
	}
}
