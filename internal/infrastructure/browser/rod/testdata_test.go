package rod

const (
	BasicHTML = `<!DOCTYPE html>
<html>
<head><title>Test Page</title></head>
<body>
	<h1>Hello World</h1>
</body>
</html>`

	// ProfileFormHTML records every input/change event in window.__events.
	ProfileFormHTML = `<!DOCTYPE html>
<html>
<head><title>Profile</title></head>
<body>
	<form id="profile" class="card">
		<input type="email" name="email" />
		<select name="country">
			<option value="">Choose</option>
			<option value="US">United States</option>
			<option value="FR"> France </option>
		</select>
		<textarea name="bio"></textarea>
		<input type="checkbox" name="terms" />
	</form>
	<form id="other">
		<input type="email" name="email" />
	</form>
	<script>
		window.__events = [];
		document.querySelectorAll('input, select, textarea').forEach(function (el) {
			['input', 'change'].forEach(function (type) {
				el.addEventListener(type, function () {
					window.__events.push({ name: el.name, type: type, value: el.value });
				});
			});
		});
	</script>
</body>
</html>`

	NextPageHTML = `<!DOCTYPE html>
<html>
<head><title>Next</title></head>
<body><p>moved on</p></body>
</html>`
)
