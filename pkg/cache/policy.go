package cache

import (
	"container/list"
	"math/rand"
	"time"
)

// policyStore 在缓存的临界区内维护淘汰策略所需的元数据。
// 所有方法都由 Cache 在持有互斥锁时调用，因此实现本身不加锁。
type policyStore[K comparable] interface {
	// OnAdd 在新条目插入后调用。
	OnAdd(key K)
	// OnAccess 在条目被成功读取后调用。
	OnAccess(key K)
	// OnRemove 在条目被移除（淘汰、过期或手动删除）后调用。
	OnRemove(key K)
	// OnClear 在缓存被清空时调用，重置全部元数据。
	OnClear()
	// Victim 返回当前策略选定的淘汰对象。缓存为空时返回 false。
	Victim() (K, bool)
}

// newPolicyStore 根据策略类型创建对应的元数据结构。
// PolicyNone 返回 nil，由调用方在写满时直接拒绝插入。
func newPolicyStore[K comparable](policy PolicyType) policyStore[K] {
	switch policy {
	case PolicyLRU:
		return newLRUStore[K]()
	case PolicyLFU:
		return newLFUStore[K]()
	case PolicyFIFO:
		return newFIFOStore[K]()
	case PolicyRandom:
		return newRandomStore[K]()
	default:
		return nil
	}
}

// lruStore LRU策略：按访问新近度维护一个双向链表，队首为最近使用。
type lruStore[K comparable] struct {
	order *list.List
	index map[K]*list.Element
}

func newLRUStore[K comparable]() *lruStore[K] {
	return &lruStore[K]{
		order: list.New(),
		index: make(map[K]*list.Element),
	}
}

func (s *lruStore[K]) OnAdd(key K) {
	s.index[key] = s.order.PushFront(key)
}

func (s *lruStore[K]) OnAccess(key K) {
	if elem, ok := s.index[key]; ok {
		s.order.MoveToFront(elem)
	}
}

func (s *lruStore[K]) OnRemove(key K) {
	if elem, ok := s.index[key]; ok {
		s.order.Remove(elem)
		delete(s.index, key)
	}
}

func (s *lruStore[K]) OnClear() {
	s.order.Init()
	s.index = make(map[K]*list.Element)
}

func (s *lruStore[K]) Victim() (K, bool) {
	var zero K
	back := s.order.Back()
	if back == nil {
		return zero, false
	}
	return back.Value.(K), true
}

// fifoStore FIFO策略：按插入顺序维护队列，读取不改变顺序。
type fifoStore[K comparable] struct {
	queue *list.List
	index map[K]*list.Element
}

func newFIFOStore[K comparable]() *fifoStore[K] {
	return &fifoStore[K]{
		queue: list.New(),
		index: make(map[K]*list.Element),
	}
}

func (s *fifoStore[K]) OnAdd(key K) {
	s.index[key] = s.queue.PushBack(key)
}

func (s *fifoStore[K]) OnAccess(key K) {}

func (s *fifoStore[K]) OnRemove(key K) {
	if elem, ok := s.index[key]; ok {
		s.queue.Remove(elem)
		delete(s.index, key)
	}
}

func (s *fifoStore[K]) OnClear() {
	s.queue.Init()
	s.index = make(map[K]*list.Element)
}

func (s *fifoStore[K]) Victim() (K, bool) {
	var zero K
	front := s.queue.Front()
	if front == nil {
		return zero, false
	}
	return front.Value.(K), true
}

// lfuStore LFU策略：按访问频率分桶，每个桶内按提升时间排序。
// 桶内队首是该频率下最久未访问的键（新插入和新提升都追加到队尾），
// 因此最小频率桶的队首同时满足"最少使用、最久未访问、最早插入"的淘汰顺序。
type lfuStore[K comparable] struct {
	freqs   map[K]int64
	buckets map[int64]*list.List
	elems   map[K]*list.Element
	minFreq int64
}

func newLFUStore[K comparable]() *lfuStore[K] {
	return &lfuStore[K]{
		freqs:   make(map[K]int64),
		buckets: make(map[int64]*list.List),
		elems:   make(map[K]*list.Element),
	}
}

func (s *lfuStore[K]) bucket(freq int64) *list.List {
	b, ok := s.buckets[freq]
	if !ok {
		b = list.New()
		s.buckets[freq] = b
	}
	return b
}

func (s *lfuStore[K]) OnAdd(key K) {
	s.freqs[key] = 1
	s.elems[key] = s.bucket(1).PushBack(key)
	s.minFreq = 1
}

func (s *lfuStore[K]) OnAccess(key K) {
	freq, ok := s.freqs[key]
	if !ok {
		return
	}
	s.detach(key, freq)
	s.freqs[key] = freq + 1
	s.elems[key] = s.bucket(freq + 1).PushBack(key)
	if s.minFreq == freq {
		if _, exists := s.buckets[freq]; !exists {
			s.minFreq = freq + 1
		}
	}
}

func (s *lfuStore[K]) OnRemove(key K) {
	freq, ok := s.freqs[key]
	if !ok {
		return
	}
	s.detach(key, freq)
	delete(s.freqs, key)
	delete(s.elems, key)
}

func (s *lfuStore[K]) OnClear() {
	s.freqs = make(map[K]int64)
	s.buckets = make(map[int64]*list.List)
	s.elems = make(map[K]*list.Element)
	s.minFreq = 0
}

func (s *lfuStore[K]) Victim() (K, bool) {
	var zero K
	if len(s.freqs) == 0 {
		return zero, false
	}
	b, ok := s.buckets[s.minFreq]
	if !ok {
		// 最小频率桶可能因删除而失效，重新扫描一遍桶索引
		s.minFreq = 0
		for freq := range s.buckets {
			if s.minFreq == 0 || freq < s.minFreq {
				s.minFreq = freq
			}
		}
		b = s.buckets[s.minFreq]
	}
	if b == nil || b.Front() == nil {
		return zero, false
	}
	return b.Front().Value.(K), true
}

// detach 将键从其当前频率桶中摘除，桶空则回收。
func (s *lfuStore[K]) detach(key K, freq int64) {
	elem, ok := s.elems[key]
	if !ok {
		return
	}
	b := s.buckets[freq]
	b.Remove(elem)
	if b.Len() == 0 {
		delete(s.buckets, freq)
	}
}

// randomStore 随机策略：键的平坦索引，swap-remove 保证 O(1) 删除，
// 淘汰对象从进程内的非加密随机源中均匀抽取。
type randomStore[K comparable] struct {
	keys  []K
	index map[K]int
	rng   *rand.Rand
}

func newRandomStore[K comparable]() *randomStore[K] {
	return &randomStore[K]{
		index: make(map[K]int),
		rng:   rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (s *randomStore[K]) OnAdd(key K) {
	s.index[key] = len(s.keys)
	s.keys = append(s.keys, key)
}

func (s *randomStore[K]) OnAccess(key K) {}

func (s *randomStore[K]) OnRemove(key K) {
	pos, ok := s.index[key]
	if !ok {
		return
	}
	last := len(s.keys) - 1
	if pos != last {
		s.keys[pos] = s.keys[last]
		s.index[s.keys[pos]] = pos
	}
	s.keys = s.keys[:last]
	delete(s.index, key)
}

func (s *randomStore[K]) OnClear() {
	s.keys = s.keys[:0]
	s.index = make(map[K]int)
}

func (s *randomStore[K]) Victim() (K, bool) {
	var zero K
	if len(s.keys) == 0 {
		return zero, false
	}
	return s.keys[s.rng.Intn(len(s.keys))], true
}
