package domain

// Handle addresses an object inside the arena of its root.
type Handle int32

// NoHandle marks the absence of a parent.
const NoHandle Handle = -1

type arenaNode struct {
	obj    Object
	parent Handle
}

// Arena stores every object of one root graph together with its parent handle, so
// children find their parent without holding a reference to it.
type Arena struct {
	nodes []arenaNode
}

func newArena(root Object) *Arena {
	a := &Arena{}
	root.Core().arena = a
	root.Core().handle = a.add(root, NoHandle)
	return a
}

func (a *Arena) add(obj Object, parent Handle) Handle {
	a.nodes = append(a.nodes, arenaNode{obj: obj, parent: parent})
	return Handle(len(a.nodes) - 1)
}

func (a *Arena) lookup(h Handle) (arenaNode, bool) {
	if h < 0 || int(h) >= len(a.nodes) || a.nodes[h].obj == nil {
		return arenaNode{}, false
	}
	return a.nodes[h], true
}

// Len returns the number of live objects recorded in the arena.
func (a *Arena) Len() int {
	n := 0
	for _, node := range a.nodes {
		if node.obj != nil {
			n++
		}
	}
	return n
}

// Parent returns the parent recorded for h.
func (a *Arena) Parent(h Handle) (Object, bool) {
	node, ok := a.lookup(h)
	if !ok || node.parent == NoHandle {
		return nil, false
	}
	parent, ok := a.lookup(node.parent)
	if !ok {
		return nil, false
	}
	return parent.obj, true
}

// adopt moves child and its subtree into the arena of parent.
func adopt(child Object, parent *Base) {
	cb := child.Core()
	if cb.arena != nil {
		cb.arena.release(cb.handle)
	}
	cb.arena = parent.arena
	cb.handle = parent.arena.add(child, parent.handle)
	for _, rel := range cb.relations {
		for _, grandchild := range rel.members() {
			adopt(grandchild, cb)
		}
	}
}

// release tombstones h so the arena no longer retains the object.
func (a *Arena) release(h Handle) {
	if h < 0 || int(h) >= len(a.nodes) {
		return
	}
	a.nodes[h] = arenaNode{parent: NoHandle}
}

// detach gives obj and its subtree a fresh arena of their own.
func detach(obj Object) {
	b := obj.Core()
	if b.arena != nil {
		b.arena.release(b.handle)
	}
	newArena(obj)
	for _, rel := range b.relations {
		for _, child := range rel.members() {
			adopt(child, b)
		}
	}
}
