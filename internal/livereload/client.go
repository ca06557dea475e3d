package livereload

// clientScript reconnects to the change feed, hot-swaps stylesheets when
// only CSS changed and reloads the page otherwise.
const clientScript = `(function () {
  var proto = location.protocol === "https:" ? "wss://" : "ws://";
  function refreshCSS() {
    var links = document.querySelectorAll('link[rel="stylesheet"]');
    for (var i = 0; i < links.length; i++) {
      var href = links[i].href.replace(/([?&])_sitepipe=\d+&?/, "$1").replace(/[?&]$/, "");
      links[i].href = href + (href.indexOf("?") < 0 ? "?" : "&") + "_sitepipe=" + Date.now();
    }
  }
  function connect() {
    var ws = new WebSocket(proto + location.host + "` + SocketPath + `");
    ws.onmessage = function (ev) {
      var msg = JSON.parse(ev.data);
      if (msg.type !== "change") return;
      var cssOnly = msg.paths.length > 0 && msg.paths.every(function (p) {
        return /\.css(\.map)?$/.test(p);
      });
      if (cssOnly) refreshCSS(); else location.reload();
    };
    ws.onclose = function () { setTimeout(connect, 1000); };
  }
  connect();
})();
`
