package browser

// Scripts run as `(root, args) => {...}` where root is the document being
// queried (the page or a same-origin frame). Elements are addressed by the
// data-tf-mark attribute that mark() writes.

const scriptPrelude = `
	if (!root) throw new Error('document not accessible');
	const W = root.defaultView || window;
	const mark = (el) => {
		if (!el.dataset.tfMark) {
			W.__tfSeq = (W.__tfSeq || 0) + 1;
			el.dataset.tfMark = args.nonce + '-' + W.__tfSeq;
		}
		return el.dataset.tfMark;
	};
	const byMark = (h) => {
		const el = root.querySelector('[data-tf-mark="' + h + '"]');
		if (!el) throw new Error('stale handle ' + h);
		return el;
	};
	const editable = (el) => (el.getAttribute('contenteditable') || '').toLowerCase() === 'true';
	const isField = (el) => el.tagName === 'INPUT' || el.tagName === 'TEXTAREA' || editable(el);
	const norm = (s) => (s || '').replace(/\s+/g, ' ').trim().toLowerCase();
	const visible = (el) => {
		const st = W.getComputedStyle(el);
		if (st.display === 'none' || st.visibility === 'hidden') return false;
		return !!(el.offsetWidth || el.offsetHeight || el.getClientRects().length);
	};
	const describe = (el) => ({
		handle: mark(el),
		tag: el.tagName.toLowerCase(),
		type: el.getAttribute('type') || '',
		name: el.getAttribute('name') || '',
		placeholder: el.getAttribute('placeholder') || '',
		ariaLabel: el.getAttribute('aria-label') || '',
		id: el.id || '',
		class: el.getAttribute('class') || '',
		testId: el.getAttribute('data-testid') || '',
		text: (el.innerText || el.textContent || '').replace(/\s+/g, ' ').trim(),
		visible: visible(el),
	});
`

const findByStableIDScript = `
	const first = (attr) => Array.from(root.querySelectorAll('[' + attr + ']'))
		.find((el) => el.getAttribute(attr) === args.value && isField(el));
	const el = first('name') || first('id');
	return el ? mark(el) : '';
`

const interactiveScript = `
	return Array.from(root.querySelectorAll('input, textarea, [contenteditable]')).filter(isField).map(describe);
`

const followingLabelScript = `
	const needle = norm(args.value);
	const skip = (el) => ['SCRIPT', 'STYLE', 'NOSCRIPT', 'TEMPLATE', 'OPTION'].includes(el.tagName) || isField(el);
	const has = (el) => !skip(el) && norm(el.textContent).includes(needle);
	const all = root.body ? Array.from(root.body.querySelectorAll('*')) : [];
	const anchor = all.find((el) => has(el) && !Array.from(el.children).some(has));
	if (!anchor) return '';
	const next = all.find((el) => isField(el) && !anchor.contains(el) &&
		(anchor.compareDocumentPosition(el) & Node.DOCUMENT_POSITION_FOLLOWING));
	return next ? mark(next) : '';
`

const controlsScript = `
	return Array.from(root.querySelectorAll('input, button'))
		.filter((el) => el.tagName !== 'INPUT' || (el.getAttribute('type') || '').toLowerCase() === 'submit')
		.map(describe);
`

const assignScript = `
	const el = byMark(args.handle);
	el.focus();
	if (editable(el)) {
		el.innerText = args.value;
	} else {
		el.value = args.value;
	}
	for (const type of ['input', 'change', 'blur']) {
		el.dispatchEvent(new W.Event(type, { bubbles: true }));
	}
	return true;
`

const valueScript = `
	const el = byMark(args.handle);
	return editable(el) ? el.innerText : (el.value || '');
`

const clickScript = `
	const el = byMark(args.handle);
	el.scrollIntoView(true);
	el.click();
	return true;
`

const markerVisibleScript = `
	const pattern = norm(args.pattern);
	return Array.from(root.querySelectorAll(args.selector))
		.some((el) => visible(el) && norm(el.textContent).includes(pattern));
`

const firstVisibleScript = `
	return args.selectors.find((sel) => Array.from(root.querySelectorAll(sel)).some(visible)) || '';
`

const framesAccessibleScript = `
	Array.from(document.querySelectorAll('iframe')).map((f) => {
		try {
			return !!f.contentDocument;
		} catch (e) {
			return false;
		}
	})
`
